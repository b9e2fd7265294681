package capture

import (
	"net/netip"
	"testing"
)

func TestFlowHasherIsBidirectional(t *testing.T) {
	h := NewFlowHasher(4)
	src := netip.MustParseAddr("203.0.113.1")
	dst := netip.MustParseAddr("198.51.100.7")

	forward := h.WorkerIndex(src, dst, 40000, 443, 6)
	reverse := h.WorkerIndex(dst, src, 443, 40000, 6)
	if forward != reverse {
		t.Errorf("both directions of a flow must map to the same worker: %d vs %d", forward, reverse)
	}
	if forward < 0 || forward >= 4 {
		t.Errorf("worker index %d out of range [0, 4)", forward)
	}
}

func TestFlowHasherIsStable(t *testing.T) {
	h := NewFlowHasher(8)
	src := netip.MustParseAddr("2001:db8::1")
	dst := netip.MustParseAddr("2001:db8::2")

	first := h.WorkerIndex(src, dst, 1234, 53, 17)
	for i := 0; i < 10; i++ {
		if got := h.WorkerIndex(src, dst, 1234, 53, 17); got != first {
			t.Fatalf("repeated hashing of the same flow moved workers: %d then %d", first, got)
		}
	}
}

func TestFlowHasherSingleWorkerAlwaysZero(t *testing.T) {
	h := NewFlowHasher(1)
	src := netip.MustParseAddr("203.0.113.1")
	dst := netip.MustParseAddr("198.51.100.7")
	if got := h.WorkerIndex(src, dst, 1, 2, 6); got != 0 {
		t.Errorf("single-worker hasher returned %d, want 0", got)
	}
}
