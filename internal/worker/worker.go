// Package worker implements the per-thread packet pipeline and interval
// state machine: Start, OnPacket, OnTick, Stop. A Worker owns no locks;
// the supervisor only ever calls its methods from a single goroutine
// per worker.
package worker

import (
	"fmt"
	"strconv"

	"github.com/packetloom/tracecore/internal/clock"
	"github.com/packetloom/tracecore/internal/control"
	"github.com/packetloom/tracecore/internal/core"
	"github.com/packetloom/tracecore/internal/filter"
	"github.com/packetloom/tracecore/internal/metrics"
	"github.com/packetloom/tracecore/internal/pluginapi"
	"github.com/packetloom/tracecore/internal/tagger"
	"github.com/packetloom/tracecore/plugins"
)

// Config is the slice of global configuration a single Worker needs.
// It is read-only after Start and shared by value across every worker.
type Config struct {
	WorkerID              int
	IntervalSeconds       uint32
	RotateEveryNIntervals uint32
	BoundStartEpoch       uint32 // 0 means unset
	BoundEndEpoch         uint32 // 0 means unset
	Plugins               []pluginapi.Descriptor
	Filters               filter.Config
	Tagger                tagger.Config
}

// Worker is the per-thread state machine. The same Worker value is
// reused across chained input sources: the supervisor keeps it alive
// between sources rather than reallocating, so plugin instances and
// the interval machine continue through a multi-source run.
type Worker struct {
	id     int
	cfg    Config
	out    chan<- control.Message
	logger pluginapi.Logger

	instances []pluginapi.Instance
	filters   *filter.Chain
	tagger    tagger.Tagger

	currentIntervalNumber uint32
	currentIntervalStart  uint32 // 0 means "not yet begun"
	nextReportTime        uint32
	lastTS                uint32
	pktsOutstanding       uint64
	pktsSinceTick         uint64

	// boundReached latches permanently once bound_end_epoch triggers an
	// orderly shutdown: the worker discards every packet from then on,
	// across every remaining chained input source.
	boundReached bool
	// stoppedThisSource dedupes the FILE_ROTATE+STOP pair within a
	// single input source. It is cleared on Rebind so a preserved
	// worker emits exactly one STOP per source it participates in,
	// even after boundReached has latched.
	stoppedThisSource bool
}

// New constructs a Worker. Start must be called before any source
// delivers packets or ticks to it.
func New(cfg Config, logger pluginapi.Logger, out chan<- control.Message) *Worker {
	return &Worker{id: cfg.WorkerID, cfg: cfg, out: out, logger: logger}
}

// Start allocates plugin instances, the filter chain, and the optional
// tagger for this worker. A plugin that fails to start is logged and
// its slot left nil; packet handling still runs with degraded plugin
// output for that slot.
func (w *Worker) Start() error {
	w.instances = make([]pluginapi.Instance, len(w.cfg.Plugins))
	for i, desc := range w.cfg.Plugins {
		startFn, err := plugins.Start(desc.Name)
		if err != nil {
			w.logger.Errorf("worker %d: plugin %q: %v", w.id, desc.Name, err)
			continue
		}
		inst, err := startFn(w.logger, desc, w.id)
		if err != nil {
			w.logger.Errorf("worker %d: plugin %q start failed: %v", w.id, desc.Name, err)
			continue
		}
		w.instances[i] = inst
	}
	w.filters = filter.New(w.cfg.Filters)
	w.tagger = tagger.New(w.cfg.Tagger)
	return nil
}

// OnPacket runs the per-packet state machine: time-bound checks,
// lazy first-interval start, interval catch-up with rotation cadence,
// filtering, tagging, and the plugin push.
func (w *Worker) OnPacket(pkt *core.DecodedPacket) {
	if w.boundReached {
		return
	}
	ts := pkt.TS()

	if w.cfg.BoundStartEpoch != 0 && ts < w.cfg.BoundStartEpoch {
		return
	}

	if w.cfg.BoundEndEpoch != 0 && ts >= w.cfg.BoundEndEpoch {
		w.closeInterval(w.cfg.BoundEndEpoch, "bound")
		w.emitFileRotate(w.cfg.BoundEndEpoch)
		w.emitStop(w.cfg.BoundEndEpoch)
		w.boundReached = true
		w.stoppedThisSource = true
		w.pktsOutstanding = 0
		return
	}

	if w.currentIntervalStart == 0 {
		// First admitted packet. Snaps to the boundary per internal/clock.
		// A ts that aligns to epoch 0 collides with the "not begun"
		// sentinel; degenerate, tolerated.
		start := clock.IntervalStart(ts, w.cfg.IntervalSeconds)
		w.currentIntervalStart = start
		w.pushIntervalStart(w.currentIntervalNumber, start)
		w.nextReportTime = start + w.cfg.IntervalSeconds
	}

	if ts < w.currentIntervalStart {
		w.logger.Warnf("worker %d: packet from before current interval (ts=%d start=%d), discarding", w.id, ts, w.currentIntervalStart)
		return
	}

	for ts >= w.nextReportTime {
		w.closeInterval(w.nextReportTime, "packet")
		if w.shouldRotate(w.currentIntervalNumber) {
			w.emitFileRotate(w.nextReportTime)
		}
		w.currentIntervalNumber++
		w.currentIntervalStart = w.nextReportTime
		w.pushIntervalStart(w.currentIntervalNumber, w.currentIntervalStart)
		w.nextReportTime += w.cfg.IntervalSeconds
		w.pktsOutstanding = 0
	}

	if w.filters != nil && !w.filters.Admit(pkt) {
		metrics.FilteredPacketsTotal.WithLabelValues(strconv.Itoa(w.id)).Inc()
		return
	}

	w.pktsOutstanding++
	w.pktsSinceTick++
	w.lastTS = ts

	var tags *core.Tags
	if w.tagger != nil {
		t, err := w.tagger.Tag(pkt)
		if err != nil {
			w.logger.Warnf("worker %d: tagging failed: %v", w.id, err)
		}
		tags = t
	}
	for _, inst := range w.instances {
		if inst != nil {
			inst.PushPacket(pkt, tags)
		}
	}
}

// OnTick fires periodically from the capture source, independent of
// packet timestamps. A worker that saw no packets since the previous
// tick is idle and would block the merger's barrier; the tick forces
// the interval closed in its place.
func (w *Worker) OnTick() {
	if w.pktsSinceTick == 0 && !w.boundReached {
		closeTime := w.cfg.BoundEndEpoch // degenerate interval_time=0 when no end bound is set
		w.closeInterval(closeTime, "tick")
		if w.shouldRotate(w.currentIntervalNumber) {
			w.emitFileRotate(w.nextReportTime)
		}
		w.currentIntervalNumber++
		w.currentIntervalStart = w.nextReportTime
		w.pushIntervalStart(w.currentIntervalNumber, w.currentIntervalStart)
		w.nextReportTime += w.cfg.IntervalSeconds
		w.pktsOutstanding = 0
		w.logger.Infof("worker %d: forced interval close on idle tick", w.id)
	}
	w.pktsSinceTick = 0
}

// Stop ends this worker's participation in the current input source.
// Every source ends with exactly one FILE_ROTATE/STOP pair, not only
// the last one: the merger and its message channel are rebuilt per
// source and need their own completed barrier before the supervisor
// can move on to the next source. When isLastSource is false, the
// interval state machine, plugin instances, filters, and tagger are
// left exactly as they are so the next source continues from them;
// Rebind clears the per-source STOP latch.
func (w *Worker) Stop(isLastSource bool) error {
	if isLastSource {
		if w.pktsOutstanding > 0 {
			w.closeInterval(w.lastTS, "stop")
			w.pktsOutstanding = 0
		}
		for _, inst := range w.instances {
			if inst == nil {
				continue
			}
			if err := inst.Stop(); err != nil {
				w.logger.Errorf("worker %d: plugin stop failed: %v", w.id, err)
			}
		}
	}
	if !w.stoppedThisSource {
		w.emitFileRotate(w.nextReportTime)
		key := w.cfg.BoundEndEpoch
		if key == 0 {
			key = w.nextReportTime
		}
		w.emitStop(key)
		w.stoppedThisSource = true
	}
	if isLastSource {
		w.filters = nil
		w.tagger = nil
	}
	return nil
}

func (w *Worker) shouldRotate(closedIntervalNumber uint32) bool {
	return w.cfg.RotateEveryNIntervals > 0 && (closedIntervalNumber+1)%w.cfg.RotateEveryNIntervals == 0
}

func (w *Worker) pushIntervalStart(number, start uint32) {
	for _, inst := range w.instances {
		if inst != nil {
			inst.PushIntervalStart(number, start)
		}
	}
}

// closeInterval runs PushIntervalEnd across every plugin instance and
// always emits INTERVAL_END: a per-plugin push failure zeroes that
// plugin's artifact slot rather than suppressing the whole message, so
// a single misbehaving plugin can never stall the merger's barrier.
func (w *Worker) closeInterval(closeTime uint32, reason string) {
	metrics.IntervalsClosedTotal.WithLabelValues(strconv.Itoa(w.id), reason).Inc()
	row := make(pluginapi.ArtifactRow, len(w.instances))
	for i, inst := range w.instances {
		if inst == nil {
			continue
		}
		artifact, err := inst.PushIntervalEnd(w.currentIntervalNumber, closeTime)
		if err != nil {
			w.logger.Errorf("worker %d: interval %d push_interval_end failed: %v", w.id, w.currentIntervalNumber, err)
			continue
		}
		row[i] = artifact
	}
	w.emit(control.NewIntervalEnd(w.id, w.currentIntervalNumber, w.currentIntervalStart, closeTime, row))
}

func (w *Worker) emitFileRotate(closeTime uint32) {
	w.emit(control.NewFileRotate(w.id, w.currentIntervalNumber, closeTime))
}

func (w *Worker) emitStop(key uint32) {
	w.emit(control.NewStop(w.id, key))
}

func (w *Worker) emit(msg control.Message) {
	w.out <- msg
}

// Rebind points the worker at a new outbound channel and clears the
// per-source STOP latch, for chaining a preserved worker onto the next
// input source's fresh merger/channel pair. The interval state machine
// and plugin instances survive the source boundary untouched; only the
// transient per-source bookkeeping resets.
func (w *Worker) Rebind(out chan<- control.Message) {
	w.out = out
	w.stoppedThisSource = false
}

// ID returns the worker's fixed index.
func (w *Worker) ID() int { return w.id }

// String aids log lines and test failures.
func (w *Worker) String() string {
	return fmt.Sprintf("worker[%d]", w.id)
}
