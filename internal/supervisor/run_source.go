package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/packetloom/tracecore/internal/capture"
	"github.com/packetloom/tracecore/internal/config"
	"github.com/packetloom/tracecore/internal/control"
	"github.com/packetloom/tracecore/internal/core"
	"github.com/packetloom/tracecore/internal/merger"
	"github.com/packetloom/tracecore/internal/metrics"
	"github.com/packetloom/tracecore/internal/pluginapi"
	"github.com/packetloom/tracecore/internal/worker"
	"github.com/packetloom/tracecore/plugins"
)

// workerEvent is one unit of work delivered to a worker goroutine:
// either a decoded packet or a tick notification. Funneling both
// through the same per-worker channel keeps every Worker method call on
// that worker's own goroutine; the Worker state machine holds no locks.
type workerEvent struct {
	pkt  *core.DecodedPacket
	tick bool
}

// runSource builds one input source's capture, merger, worker-pool, and
// tick topology, runs it to completion (source exhaustion, error, or
// halt request), and tears it back down. workers is the fixed-size,
// supervisor-owned pool; each is rebound to this source's fresh channel
// rather than reallocated.
func (s *Supervisor) runSource(ctx context.Context, src config.SourceConfig, workers []*worker.Worker, isLast bool) error {
	capSrc, err := buildSource(s.cfg.BPFExpression, src)
	if err != nil {
		return fmt.Errorf("building source %q: %w", src.Name, err)
	}
	if err := capSrc.Start(ctx); err != nil {
		return fmt.Errorf("starting source %q: %w", src.Name, err)
	}
	defer capSrc.Close()

	metrics.SourceStatus.WithLabelValues(src.Name).Set(metrics.SourceStatusRunning)

	ch := make(chan control.Message, 256*len(workers))
	for _, w := range workers {
		w.Rebind(ch)
	}

	mergePlugins := s.startMergePlugins(len(workers))

	sourceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.halt.resetTrace()
	traced := make(chan struct{})
	mg := merger.New(len(workers), ch, mergePlugins, s.logger, func() {
		s.halt.MarkTraced()
		close(traced)
	})

	var hasher *capture.FlowHasher
	if len(workers) > 1 {
		hasher = capture.NewFlowHasher(len(workers))
	}
	tick := capture.NewTickSource(time.Duration(s.cfg.IntervalSeconds) * time.Second)

	wg := conc.NewWaitGroup()
	wg.Go(func() {
		if err := mg.Run(sourceCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Errorf("supervisor: source %q: merger: %v", src.Name, err)
		}
	})

	// One goroutine per worker, each draining its own event channel.
	// Stop runs on the worker's goroutine too, after the channel closes,
	// so the full start/on_packet/on_tick/stop lifecycle is sequenced.
	events := make([]chan workerEvent, len(workers))
	for i := range events {
		events[i] = make(chan workerEvent, 1024)
	}
	for i, w := range workers {
		wg.Go(func() {
			for ev := range events[i] {
				if ev.tick {
					w.OnTick()
				} else {
					w.OnPacket(ev.pkt)
				}
			}
			if err := w.Stop(isLast); err != nil {
				s.logger.Errorf("supervisor: source %q: worker %d stop: %v", src.Name, i, err)
			}
		})
	}

	// The tick fan-out runs outside the conc group so it can be stopped
	// and waited for before the event channels close; a tick send on a
	// closed channel would panic.
	tickCtx, cancelTick := context.WithCancel(sourceCtx)
	tickDone := make(chan struct{})
	go func() {
		defer close(tickDone)
		tick.Run(tickCtx, func() {
			for _, evCh := range events {
				select {
				case evCh <- workerEvent{tick: true}:
				case <-tickCtx.Done():
					return
				}
			}
		})
	}()

	s.pump(sourceCtx, capSrc, events, hasher, src.Name)

	cancelTick()
	<-tickDone
	for _, evCh := range events {
		close(evCh)
	}

	// Block until the merger has seen every worker's STOP and drained
	// its pending list, or the run context is cancelled first.
	select {
	case <-traced:
	case <-ctx.Done():
	}
	cancel()
	wg.Wait()

	stats := capSrc.Stats()
	s.logger.Infof("supervisor: source %q done: received=%d dropped=%d missing=%d",
		src.Name, stats.Received, stats.Dropped, stats.Missing)
	metrics.CaptureDropsTotal.WithLabelValues(src.Name).Add(float64(stats.Dropped))
	metrics.CaptureMissingTotal.WithLabelValues(src.Name).Add(float64(stats.Missing))
	metrics.SourceStatus.WithLabelValues(src.Name).Set(metrics.SourceStatusDone)
	return nil
}

// pump reads raw packets off capSrc until it is exhausted, the context
// is cancelled, or a halt has been requested, decoding and dispatching
// each to its assigned worker's event channel by 5-tuple hash (or
// always worker 0 when there is only one).
func (s *Supervisor) pump(ctx context.Context, capSrc capture.Source, events []chan workerEvent, hasher *capture.FlowHasher, sourceName string) {
	linkType := capSrc.LinkType()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if s.halt.Requested() {
			return
		}

		data, info, err := capSrc.ReadPacket()
		if err != nil {
			if err != io.EOF {
				s.logger.Warnf("supervisor: source %q: read error: %v", sourceName, err)
			}
			return
		}

		decoded, err := core.Decode(core.RawPacket{Data: data, Info: info, LinkType: linkType})
		if err != nil {
			s.logger.Warnf("supervisor: source %q: decode error: %v", sourceName, err)
			continue
		}
		if decoded == nil {
			continue // no IP network layer (e.g. ARP); nothing for a worker to act on
		}

		idx := 0
		if hasher != nil {
			idx = hasher.WorkerIndex(decoded.SrcIP, decoded.DstIP, decoded.SrcPort, decoded.DstPort, decoded.Protocol)
		}
		metrics.CapturePacketsTotal.WithLabelValues(strconv.Itoa(idx), sourceName).Inc()
		select {
		case events[idx] <- workerEvent{pkt: decoded}:
		case <-ctx.Done():
			return
		}
	}
}

// startMergePlugins constructs one MergeInstance per configured plugin
// descriptor for the source about to run. A plugin that fails to start
// is logged and left nil, matching the per-worker Start's degraded-slot
// handling in internal/worker.
func (s *Supervisor) startMergePlugins(workerCount int) []pluginapi.MergeInstance {
	mergePlugins := make([]pluginapi.MergeInstance, len(s.cfg.ActivePlugins))
	for i, pd := range s.cfg.ActivePlugins {
		startMerging, err := plugins.StartMerging(pd.Name)
		if err != nil {
			s.logger.Errorf("supervisor: plugin %q: %v", pd.Name, err)
			continue
		}
		mp, err := startMerging(s.logger, pd.ToDescriptor(), workerCount)
		if err != nil {
			s.logger.Errorf("supervisor: plugin %q startMerging failed: %v", pd.Name, err)
			continue
		}
		mergePlugins[i] = mp
	}
	return mergePlugins
}

// buildSource constructs the concrete capture.Source for one input
// source entry, applying the global BPF expression when set.
func buildSource(bpfExpr string, src config.SourceConfig) (capture.Source, error) {
	switch src.Type {
	case "live":
		return capture.NewLiveSource(capture.LiveConfig{
			Device:        src.Device,
			SnapLen:       src.SnapLen,
			BufferSizeMB:  src.BufferSizeMB,
			TimeoutMs:     src.TimeoutMs,
			FanoutID:      src.FanoutID,
			BPFExpression: bpfExpr,
		}), nil
	case "file":
		return capture.NewFileSource(src.FilePath), nil
	default:
		return nil, fmt.Errorf("unrecognized source type %q", src.Type)
	}
}
