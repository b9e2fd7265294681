package control

import (
	"testing"

	"github.com/packetloom/tracecore/internal/pluginapi"
)

func TestPublicationKeyIsCloseTimeShifted(t *testing.T) {
	m := NewIntervalEnd(0, 3, 180, 240, pluginapi.ArtifactRow{nil})
	if got, want := m.PublicationKey(), uint64(240)<<32; got != want {
		t.Errorf("PublicationKey() = %#x, want %#x", got, want)
	}
}

func TestFileRotateCarriesCloseTimeMinusOne(t *testing.T) {
	m := NewFileRotate(1, 3, 240)
	if m.IntervalNumber != 3 {
		t.Errorf("got interval %d, want 3", m.IntervalNumber)
	}
	if m.IntervalTime != 239 {
		t.Errorf("got interval_time %d, want close_time-1 = 239", m.IntervalTime)
	}
	if m.Artifacts != nil {
		t.Error("FILE_ROTATE must carry no artifacts")
	}
}

func TestStopUsesCallerSuppliedKey(t *testing.T) {
	m := NewStop(2, 500)
	if m.IntervalNumber != 0 || m.IntervalTime != 0 {
		t.Errorf("STOP should carry zero interval fields, got %d/%d", m.IntervalNumber, m.IntervalTime)
	}
	if got, want := m.PublicationKey(), uint64(500)<<32; got != want {
		t.Errorf("PublicationKey() = %#x, want %#x", got, want)
	}
}

// A worker's emission sequence for one interval close publishes
// non-decreasing keys: INTERVAL_END and FILE_ROTATE at the boundary,
// STOP at or after it.
func TestEmissionSequenceKeysNonDecreasing(t *testing.T) {
	seq := []Message{
		NewIntervalEnd(0, 0, 60, 120, pluginapi.ArtifactRow{nil}),
		NewFileRotate(0, 0, 120),
		NewStop(0, 120),
	}
	for i := 1; i < len(seq); i++ {
		if seq[i].PublicationKey() < seq[i-1].PublicationKey() {
			t.Errorf("key at %d (%#x) decreased below %#x", i, seq[i].PublicationKey(), seq[i-1].PublicationKey())
		}
	}
}
