package worker

import (
	"net/netip"
	"testing"
	"time"

	"github.com/packetloom/tracecore/internal/control"
	"github.com/packetloom/tracecore/internal/core"
	"github.com/packetloom/tracecore/internal/pluginapi"
	"github.com/packetloom/tracecore/plugins"
)

func unixSeconds(ts uint32) time.Time {
	return time.Unix(int64(ts), 0).UTC()
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// recordingInstance is a stub pluginapi.Instance that counts calls so
// tests can assert on the worker's state machine without depending on
// any concrete plugin package.
type recordingInstance struct {
	starts  [][2]uint32
	packets int
	ends    []uint32 // interval numbers PushIntervalEnd was called for
}

func (r *recordingInstance) PushIntervalStart(number, start uint32) {
	r.starts = append(r.starts, [2]uint32{number, start})
}
func (r *recordingInstance) PushPacket(pkt *core.DecodedPacket, tags *core.Tags) { r.packets++ }
func (r *recordingInstance) PushIntervalEnd(number, end uint32) (pluginapi.Artifact, error) {
	r.ends = append(r.ends, number)
	return number, nil
}
func (r *recordingInstance) Stop() error { return nil }

const testPluginName = "worker-test-stub"

var lastRecordingInstance *recordingInstance

func init() {
	plugins.Register(testPluginName,
		func(logger pluginapi.Logger, desc pluginapi.Descriptor, workerID int) (pluginapi.Instance, error) {
			lastRecordingInstance = &recordingInstance{}
			return lastRecordingInstance, nil
		},
		func(logger pluginapi.Logger, desc pluginapi.Descriptor, workerCount int) (pluginapi.MergeInstance, error) {
			return nil, nil
		},
	)
}

func newTestWorker(t *testing.T, cfg Config) (*Worker, <-chan control.Message) {
	t.Helper()
	cfg.Plugins = []pluginapi.Descriptor{{Name: testPluginName}}
	ch := make(chan control.Message, 64)
	w := New(cfg, nopLogger{}, ch)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return w, ch
}

func pktAt(ts uint32) *core.DecodedPacket {
	return &core.DecodedPacket{
		Timestamp: unixSeconds(ts),
		SrcIP:     netip.MustParseAddr("203.0.113.1"),
		DstIP:     netip.MustParseAddr("198.51.100.1"),
	}
}

func drain(ch <-chan control.Message, n int) []control.Message {
	out := make([]control.Message, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, <-ch)
	}
	return out
}

// Single worker, three intervals, closing the third only at stop.
func TestSingleWorkerThreeIntervals(t *testing.T) {
	w, ch := newTestWorker(t, Config{WorkerID: 0, IntervalSeconds: 60})

	for _, ts := range []uint32{100, 130, 165, 200} {
		w.OnPacket(pktAt(ts))
	}
	w.Stop(true)

	msgs := drain(ch, 3)
	for i, m := range msgs {
		if m.Kind != control.IntervalEnd {
			t.Fatalf("message %d: got kind %v, want IntervalEnd", i, m.Kind)
		}
	}
	if msgs[0].IntervalNumber != 0 || msgs[0].IntervalTime != 60 {
		t.Errorf("interval 0: got number=%d time=%d, want 0/60", msgs[0].IntervalNumber, msgs[0].IntervalTime)
	}
	if msgs[1].IntervalNumber != 1 || msgs[1].IntervalTime != 120 {
		t.Errorf("interval 1: got number=%d time=%d, want 1/120", msgs[1].IntervalNumber, msgs[1].IntervalTime)
	}
	if msgs[2].IntervalNumber != 2 || msgs[2].IntervalTime != 180 {
		t.Errorf("interval 2: got number=%d time=%d, want 2/180", msgs[2].IntervalNumber, msgs[2].IntervalTime)
	}

	next := <-ch
	if next.Kind != control.FileRotate {
		t.Fatalf("expected FILE_ROTATE after stop, got %v", next.Kind)
	}
	stopMsg := <-ch
	if stopMsg.Kind != control.Stop {
		t.Fatalf("expected STOP after FILE_ROTATE, got %v", stopMsg.Kind)
	}

	if lastRecordingInstance == nil || len(lastRecordingInstance.ends) != 3 {
		t.Fatalf("expected 3 PushIntervalEnd calls, got %+v", lastRecordingInstance)
	}
}

// An idle tick forces an INTERVAL_END for a worker that never
// receives a packet.
func TestIdleTickForcesClose(t *testing.T) {
	w, ch := newTestWorker(t, Config{WorkerID: 1, IntervalSeconds: 10, BoundEndEpoch: 100})

	w.OnTick()

	msg := <-ch
	if msg.Kind != control.IntervalEnd {
		t.Fatalf("got %v, want IntervalEnd", msg.Kind)
	}
	if msg.IntervalNumber != 0 {
		t.Errorf("got interval %d, want 0", msg.IntervalNumber)
	}
}

// An out-of-order packet is discarded without affecting
// push counters.
func TestOutOfOrderPacketDiscarded(t *testing.T) {
	w, ch := newTestWorker(t, Config{WorkerID: 0, IntervalSeconds: 60})

	w.OnPacket(pktAt(125)) // establishes interval start at 120
	before := lastRecordingInstance.packets

	w.OnPacket(pktAt(115)) // before current_interval.start_time == 120

	if lastRecordingInstance.packets != before {
		t.Errorf("out-of-order packet should not reach plugins: before=%d after=%d", before, lastRecordingInstance.packets)
	}
	select {
	case m := <-ch:
		t.Fatalf("expected no control message from an out-of-order packet, got %v", m.Kind)
	default:
	}
}

// bound_end_epoch triggers an orderly INTERVAL_END, FILE_ROTATE,
// STOP sequence and latches the worker stopped.
func TestBoundedEndShutsDownOnce(t *testing.T) {
	w, ch := newTestWorker(t, Config{WorkerID: 0, IntervalSeconds: 60, BoundEndEpoch: 200})

	w.OnPacket(pktAt(180))
	w.OnPacket(pktAt(190))
	w.OnPacket(pktAt(201))

	msgs := drain(ch, 3)
	if msgs[0].Kind != control.IntervalEnd || msgs[1].Kind != control.FileRotate || msgs[2].Kind != control.Stop {
		t.Fatalf("got kinds %v/%v/%v, want IntervalEnd/FileRotate/Stop", msgs[0].Kind, msgs[1].Kind, msgs[2].Kind)
	}

	before := lastRecordingInstance.packets
	w.OnPacket(pktAt(250))
	if lastRecordingInstance.packets != before {
		t.Error("worker should no-op once stopped")
	}

	select {
	case m := <-ch:
		t.Fatalf("expected no further messages once stopped, got %v", m.Kind)
	default:
	}
}

// Worker-local state survives an input-source boundary:
// interval numbers continue rather than resetting, and the interval
// left open at the end of source A closes normally in source B.
func TestMultiSourceContinuity(t *testing.T) {
	w, ch := newTestWorker(t, Config{WorkerID: 0, IntervalSeconds: 60})

	w.OnPacket(pktAt(100)) // interval 0: [60, 120)
	w.Stop(false)

	msgs := drain(ch, 2)
	if msgs[0].Kind != control.FileRotate || msgs[1].Kind != control.Stop {
		t.Fatalf("source A end: got kinds %v/%v, want FileRotate/Stop", msgs[0].Kind, msgs[1].Kind)
	}
	select {
	case m := <-ch:
		t.Fatalf("interval 0 should stay open across the source boundary, got %v", m.Kind)
	default:
	}

	ch2 := make(chan control.Message, 64)
	w.Rebind(ch2)

	w.OnPacket(pktAt(130)) // crosses 120: closes interval 0, opens interval 1
	w.OnPacket(pktAt(190)) // crosses 180: closes interval 1, opens interval 2
	w.Stop(true)

	msgs = drain(ch2, 3)
	if msgs[0].IntervalNumber != 0 || msgs[0].IntervalTime != 60 {
		t.Errorf("source B first close: got number=%d time=%d, want 0/60 (continued from source A)", msgs[0].IntervalNumber, msgs[0].IntervalTime)
	}
	if msgs[1].IntervalNumber != 1 || msgs[1].IntervalTime != 120 {
		t.Errorf("source B second close: got number=%d time=%d, want 1/120", msgs[1].IntervalNumber, msgs[1].IntervalTime)
	}
	if msgs[2].IntervalNumber != 2 || msgs[2].IntervalTime != 180 {
		t.Errorf("stop close: got number=%d time=%d, want 2/180", msgs[2].IntervalNumber, msgs[2].IntervalTime)
	}
}

// The worker emits FILE_ROTATE exactly when
// (closed_interval_number+1) mod rotate_every_n_intervals == 0.
func TestRotationCadenceAtWorker(t *testing.T) {
	w, ch := newTestWorker(t, Config{WorkerID: 0, IntervalSeconds: 60, RotateEveryNIntervals: 2})

	w.OnPacket(pktAt(100)) // interval 0: [60, 120)
	w.OnPacket(pktAt(110)) // still interval 0
	w.OnPacket(pktAt(130)) // closes interval 0: (0+1)%2 != 0, no rotate
	w.OnPacket(pktAt(190)) // closes interval 1: (1+1)%2 == 0, rotate

	msgs := drain(ch, 3)
	if msgs[0].Kind != control.IntervalEnd || msgs[0].IntervalNumber != 0 {
		t.Fatalf("first message: got %v/%d, want IntervalEnd/0", msgs[0].Kind, msgs[0].IntervalNumber)
	}
	if msgs[1].Kind != control.IntervalEnd || msgs[1].IntervalNumber != 1 {
		t.Fatalf("second message: got %v/%d, want IntervalEnd/1", msgs[1].Kind, msgs[1].IntervalNumber)
	}
	if msgs[2].Kind != control.FileRotate || msgs[2].IntervalNumber != 1 {
		t.Fatalf("third message: got %v/%d, want FileRotate for interval 1", msgs[2].Kind, msgs[2].IntervalNumber)
	}
	select {
	case m := <-ch:
		t.Fatalf("no rotation should follow interval 0, got extra %v", m.Kind)
	default:
	}
}

// A timestamp gap spanning several intervals closes each skipped
// interval in order before the packet is admitted.
func TestMultiIntervalGapCatchUp(t *testing.T) {
	w, ch := newTestWorker(t, Config{WorkerID: 0, IntervalSeconds: 60})

	w.OnPacket(pktAt(100)) // interval 0: [60, 120)
	w.OnPacket(pktAt(350)) // closes 0@120, 1@180, 2@240, 3@300; lands in interval 4

	msgs := drain(ch, 4)
	for i, m := range msgs {
		if m.Kind != control.IntervalEnd {
			t.Fatalf("message %d: got %v, want IntervalEnd", i, m.Kind)
		}
		if m.IntervalNumber != uint32(i) {
			t.Errorf("message %d: got interval %d, want %d", i, m.IntervalNumber, i)
		}
		wantStart := uint32(60 + 60*i)
		if m.IntervalTime != wantStart {
			t.Errorf("message %d: got start %d, want %d", i, m.IntervalTime, wantStart)
		}
	}
	if lastRecordingInstance.starts[len(lastRecordingInstance.starts)-1] != [2]uint32{4, 300} {
		t.Errorf("expected plugin start for interval 4 at 300, got %v", lastRecordingInstance.starts)
	}
}
