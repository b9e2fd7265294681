package clock

import "testing"

func TestIntervalStart(t *testing.T) {
	cases := []struct {
		ts, interval, want uint32
	}{
		{100, 60, 60},
		{130, 60, 120},
		{165, 60, 120},
		{200, 60, 180},
		{60, 60, 60},
		{0, 60, 0},
	}
	for _, c := range cases {
		if got := IntervalStart(c.ts, c.interval); got != c.want {
			t.Errorf("IntervalStart(%d, %d) = %d, want %d", c.ts, c.interval, got, c.want)
		}
	}
}

func TestNextAdvancesByIntervalSeconds(t *testing.T) {
	start := IntervalStart(100, 60)
	if next := Next(start, 60); next != 120 {
		t.Errorf("Next(%d, 60) = %d, want 120", start, next)
	}
	if next2 := Next(Next(start, 60), 60); next2 != 180 {
		t.Errorf("successive Next calls should advance by exactly intervalSeconds, got %d", next2)
	}
}

func TestContains(t *testing.T) {
	if !Contains(125, 120, 60) {
		t.Error("125 should be within [120, 180)")
	}
	if Contains(180, 120, 60) {
		t.Error("180 should NOT be within [120, 180); the interval end is exclusive")
	}
	if Contains(119, 120, 60) {
		t.Error("119 should NOT be within [120, 180)")
	}
}
