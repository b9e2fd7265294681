// Package metrics defines the Prometheus instruments for the
// capture/interval/barrier/rotation concerns this module tracks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CapturePacketsTotal counts packets read from a source, per worker.
	CapturePacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracecore_capture_packets_total",
			Help: "Total number of packets read from a capture source",
		},
		[]string{"worker", "source"},
	)

	// CaptureDropsTotal counts packets the capture source reports as
	// dropped before they ever reached a worker.
	CaptureDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracecore_capture_drops_total",
			Help: "Total number of packets dropped by the capture source",
		},
		[]string{"source"},
	)

	// CaptureMissingTotal counts packets libpcap/afpacket reports as
	// missing due to kernel ring-buffer pressure.
	CaptureMissingTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracecore_capture_missing_total",
			Help: "Total number of packets missing from the capture source's ring buffer",
		},
		[]string{"source"},
	)

	// FilteredPacketsTotal counts packets rejected by a worker's filter
	// chain.
	FilteredPacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracecore_filtered_packets_total",
			Help: "Total number of packets rejected by a worker's filter chain",
		},
		[]string{"worker"},
	)

	// IntervalsClosedTotal counts INTERVAL_END emissions per worker,
	// split by whether the close was driven by a packet or an idle tick.
	IntervalsClosedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracecore_intervals_closed_total",
			Help: "Total number of intervals closed by a worker",
		},
		[]string{"worker", "reason"},
	)

	// BarriersCompletedTotal counts plugin-merge passes the merger has
	// run: completed barriers, single-worker fast-path merges, and
	// incomplete intervals merged while draining.
	BarriersCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracecore_barriers_completed_total",
			Help: "Total number of interval barriers completed by the merger",
		},
	)

	// RotationsTotal counts output rotations triggered by the merger.
	RotationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracecore_rotations_total",
			Help: "Total number of output rotations triggered by the merger",
		},
	)

	// PendingIntervals tracks the current depth of the merger's
	// pending-interval list (always 0 in the single-worker fast path).
	PendingIntervals = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracecore_pending_intervals",
			Help: "Current number of pending (not yet barrier-complete) intervals held by the merger",
		},
	)

	// SourceStatus tracks each configured input source's run state.
	SourceStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tracecore_source_status",
			Help: "Current status of an input source (0=pending, 1=running, 2=done, 3=error)",
		},
		[]string{"source"},
	)
)

// Source status values for the SourceStatus gauge.
const (
	SourceStatusPending = 0
	SourceStatusRunning = 1
	SourceStatusDone    = 2
	SourceStatusError   = 3
)
