// Package pluginapi defines the opaque plugin contract that workers and
// the merger drive: per-worker interval push on one side, per-merger
// interval merge/rotate on the other.
//
// Plugin semantics themselves (what an Instance actually computes) are
// the plugin's own business; only the lifecycle contract below is
// shared.
package pluginapi

import (
	"context"

	"github.com/packetloom/tracecore/internal/core"
)

// Artifact is one plugin's opaque per-worker, per-interval result.
type Artifact any

// ArtifactRow holds one worker's artifacts, one slot per configured
// plugin, in active_plugins order.
type ArtifactRow []Artifact

// Descriptor names one configured plugin and its raw options, decoded
// from the active_plugins config list (see internal/config).
type Descriptor struct {
	Name   string
	Config map[string]any
}

// Instance is the per-worker handle returned by a plugin's Start.
type Instance interface {
	// PushIntervalStart notifies the instance that a new interval has
	// begun, before any packets for it are pushed.
	PushIntervalStart(intervalNumber, intervalTime uint32)
	// PushPacket hands one admitted, filtered packet to the plugin.
	// tags is nil when tagging is disabled or the packet was not tagged.
	PushPacket(pkt *core.DecodedPacket, tags *core.Tags)
	// PushIntervalEnd closes the current interval and returns this
	// worker's artifact for it. Returning a non-nil error signals a
	// push failure; the caller still receives whatever partial
	// artifact the plugin could produce, which may be nil.
	PushIntervalEnd(intervalNumber, endTime uint32) (Artifact, error)
	// Stop tears down the instance at the end of the worker's last
	// input source.
	Stop() error
}

// MergeInstance is the merger-only handle returned by a plugin's
// StartMerging. It never sees individual packets.
type MergeInstance interface {
	// Merge combines one interval's artifacts (one slot per worker, in
	// the order the workers' INTERVAL_END messages arrived, not by worker
	// id; a nil element means no artifact for that slot, either because
	// the plugin produced none or because the interval was merged while
	// draining before every worker reported) into the plugin's running
	// output.
	Merge(ctx context.Context, intervalNumber, intervalTime uint32, perWorker []Artifact) error
	// RotateOutput closes the current output destination and begins a
	// new one.
	RotateOutput(ctx context.Context) error
	// Stop tears down the merge instance when the merger drains.
	Stop(ctx context.Context) error
}

// StartFunc constructs a new per-worker Instance.
type StartFunc func(logger Logger, desc Descriptor, workerID int) (Instance, error)

// StartMergingFunc constructs the single per-run MergeInstance.
type StartMergingFunc func(logger Logger, desc Descriptor, workerCount int) (MergeInstance, error)

// Logger is the minimal logging surface plugins receive, so plugin
// packages don't need to import a concrete logging backend.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}
