// Package merger implements the single-threaded barrier coordinator:
// it consumes control.Message values published by every worker,
// barriers per-interval contributions, drives plugin merging, and
// triggers output rotation.
package merger

import (
	"context"
	"fmt"

	"github.com/packetloom/tracecore/internal/control"
	"github.com/packetloom/tracecore/internal/core"
	"github.com/packetloom/tracecore/internal/metrics"
	"github.com/packetloom/tracecore/internal/pluginapi"
)

// Merger is constructed once per input source by the supervisor.
type Merger struct {
	workerCount  int
	in           <-chan control.Message
	mergePlugins []pluginapi.MergeInstance
	logger       pluginapi.Logger
	onAllStopped func()

	pending            pendingList
	stopsSeen          uint32
	nextRotateInterval uint32
}

// New constructs a Merger. mergePlugins must be in the same order as
// the worker-side plugin descriptors so merge-time artifact columns
// line up with push-time artifact rows. onAllStopped is invoked once
// every worker has published STOP, after the pending list has fully
// drained; it is the supervisor's signal that this input source's
// topology can be torn down.
func New(workerCount int, in <-chan control.Message, mergePlugins []pluginapi.MergeInstance, logger pluginapi.Logger, onAllStopped func()) *Merger {
	return &Merger{
		workerCount:  workerCount,
		in:           in,
		mergePlugins: mergePlugins,
		logger:       logger,
		onAllStopped: onAllStopped,
	}
}

// Run consumes messages until every worker has published STOP, then
// drains any remaining pending records in order. If ctx is cancelled
// first, it returns ctx.Err() without draining.
func (m *Merger) Run(ctx context.Context) error {
	for m.stopsSeen < uint32(m.workerCount) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-m.in:
			if !ok {
				// Channel closed before every STOP arrived: a worker
				// was torn down without completing its protocol. Drain
				// what we have and return.
				return m.drainAndStop(ctx)
			}
			if err := m.handle(ctx, msg); err != nil {
				return err
			}
		}
	}
	return m.drainAndStop(ctx)
}

func (m *Merger) handle(ctx context.Context, msg control.Message) error {
	switch msg.Kind {
	case control.Stop:
		m.stopsSeen++
		return nil
	case control.FileRotate:
		return m.handleFileRotate(ctx, msg)
	case control.IntervalEnd:
		return m.handleIntervalEnd(ctx, msg)
	default:
		return fmt.Errorf("%w: unrecognized message kind %v", core.ErrBarrierProtocol, msg.Kind)
	}
}

// handleIntervalEnd barriers one worker's interval contribution. With a
// single worker there is nothing to barrier, so the pending list is
// bypassed entirely and the merge runs inline.
func (m *Merger) handleIntervalEnd(ctx context.Context, msg control.Message) error {
	if m.workerCount == 1 {
		return m.mergeRows(ctx, msg.IntervalNumber, msg.IntervalTime, []pluginapi.ArtifactRow{msg.Artifacts})
	}

	rec := m.pending.find(msg.IntervalNumber)
	if rec == nil {
		rec = &pendingRecord{
			intervalID:   msg.IntervalNumber,
			intervalTime: msg.IntervalTime,
			artifacts:    make([]pluginapi.ArtifactRow, m.workerCount),
		}
		rec.artifacts[0] = msg.Artifacts
		rec.threadsEnded = 1
		m.pending.append(rec)
		metrics.PendingIntervals.Set(float64(m.pending.len()))
		return nil
	}

	rec.artifacts[rec.threadsEnded] = msg.Artifacts
	rec.threadsEnded++
	if rec.threadsEnded < uint32(m.workerCount) {
		return nil
	}

	// Only the head of the list may complete: older pending intervals
	// always drain before newer ones.
	if m.pending.head() != rec {
		return fmt.Errorf("%w: interval %d completed out of head order", core.ErrBarrierProtocol, msg.IntervalNumber)
	}
	return m.completeHead(ctx)
}

func (m *Merger) completeHead(ctx context.Context) error {
	rec := m.pending.removeHead()
	metrics.PendingIntervals.Set(float64(m.pending.len()))
	if err := m.mergeRows(ctx, rec.intervalID, rec.intervalTime, rec.artifacts); err != nil {
		return err
	}
	if rec.rotateAfter {
		if err := m.rotate(ctx); err != nil {
			return err
		}
		m.nextRotateInterval = rec.intervalID + 1
	}
	return nil
}

// handleFileRotate rotates immediately when nothing is pending, or
// defers the rotation to the named interval's barrier completion.
func (m *Merger) handleFileRotate(ctx context.Context, msg control.Message) error {
	k := msg.IntervalNumber
	if m.pending.len() == 0 && m.nextRotateInterval <= k {
		if err := m.rotate(ctx); err != nil {
			return err
		}
		m.nextRotateInterval = k + 1
		return nil
	}
	rec := m.pending.find(k)
	if rec == nil {
		return fmt.Errorf("%w: FILE_ROTATE for interval %d with no matching pending record", core.ErrBarrierProtocol, k)
	}
	rec.rotateAfter = true
	return nil
}

// drainAndStop merges any remaining pending records in ascending
// interval order, stops the merge plugins, and signals the supervisor.
func (m *Merger) drainAndStop(ctx context.Context) error {
	for m.pending.len() > 0 {
		rec := m.pending.removeHead()
		metrics.PendingIntervals.Set(float64(m.pending.len()))
		if err := m.mergeRows(ctx, rec.intervalID, rec.intervalTime, rec.artifacts); err != nil {
			m.logger.Errorf("merger: draining interval %d: %v", rec.intervalID, err)
		}
		if rec.rotateAfter {
			if err := m.rotate(ctx); err != nil {
				m.logger.Errorf("merger: rotate while draining interval %d: %v", rec.intervalID, err)
			}
			m.nextRotateInterval = rec.intervalID + 1
		}
	}
	for _, mp := range m.mergePlugins {
		if mp == nil {
			continue
		}
		if err := mp.Stop(ctx); err != nil {
			m.logger.Errorf("merger: plugin stop failed: %v", err)
		}
	}
	if m.onAllStopped != nil {
		m.onAllStopped()
	}
	return nil
}

// mergeRows invokes Merge on every configured merge plugin, extracting
// that plugin's column across all workers' artifact rows.
func (m *Merger) mergeRows(ctx context.Context, intervalID, intervalTime uint32, rows []pluginapi.ArtifactRow) error {
	for p, mp := range m.mergePlugins {
		if mp == nil {
			continue
		}
		perWorker := make([]pluginapi.Artifact, len(rows))
		for wID, row := range rows {
			if row != nil && p < len(row) {
				perWorker[wID] = row[p]
			}
		}
		if err := mp.Merge(ctx, intervalID, intervalTime, perWorker); err != nil {
			m.logger.Errorf("merger: plugin merge failed for interval %d: %v", intervalID, err)
		}
	}
	metrics.BarriersCompletedTotal.Inc()
	return nil
}

func (m *Merger) rotate(ctx context.Context) error {
	for _, mp := range m.mergePlugins {
		if mp == nil {
			continue
		}
		if err := mp.RotateOutput(ctx); err != nil {
			m.logger.Errorf("merger: rotate_output failed: %v", err)
		}
	}
	metrics.RotationsTotal.Inc()
	return nil
}
