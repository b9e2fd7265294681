// Package control defines the three-message wire protocol that a Worker
// uses to hand interval results to the Merger. Messages are plain
// values passed over a Go channel; ownership transfers to the receiver
// on send.
package control

import "github.com/packetloom/tracecore/internal/pluginapi"

// Kind identifies one of the three message kinds in the protocol.
type Kind uint8

const (
	// IntervalEnd carries one worker's per-plugin artifacts for a
	// closed interval. "I finished interval k; here is my contribution."
	IntervalEnd Kind = iota
	// FileRotate requests that output be rotated once interval k's
	// barrier completes.
	FileRotate
	// Stop announces that the emitting worker will send no further
	// messages for the current input source.
	Stop
)

func (k Kind) String() string {
	switch k {
	case IntervalEnd:
		return "INTERVAL_END"
	case FileRotate:
		return "FILE_ROTATE"
	case Stop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// Message is the single type flowing from every worker to the merger.
type Message struct {
	Kind           Kind
	WorkerID       int
	IntervalNumber uint32
	IntervalTime   uint32
	// Artifacts holds one opaque result per configured plugin for
	// IntervalEnd messages, and is nil otherwise. internal/worker's
	// closeInterval leaves a plugin's slot nil when that plugin's
	// PushIntervalEnd fails and still sends the message, so the barrier
	// never stalls on a plugin push failure; the merger counts the
	// message as this worker's contribution and passes the nil slot on
	// to Merge.
	Artifacts pluginapi.ArtifactRow

	// closeTime is the epoch-second boundary used to build the
	// publication key; it is not part of the wire contract exposed to
	// plugins, only the ordering key consumed by the merger.
	closeTime uint32
}

// NewIntervalEnd builds an IntervalEnd message, keyed by the interval's
// close time.
func NewIntervalEnd(workerID int, intervalNumber, intervalTime, closeTime uint32, artifacts pluginapi.ArtifactRow) Message {
	return Message{
		Kind:           IntervalEnd,
		WorkerID:       workerID,
		IntervalNumber: intervalNumber,
		IntervalTime:   intervalTime,
		Artifacts:      artifacts,
		closeTime:      closeTime,
	}
}

// NewFileRotate builds a FILE_ROTATE message for the last interval
// closed by the emitting worker.
func NewFileRotate(workerID int, lastClosedInterval, closeTime uint32) Message {
	return Message{
		Kind:           FileRotate,
		WorkerID:       workerID,
		IntervalNumber: lastClosedInterval,
		IntervalTime:   closeTime - 1,
		closeTime:      closeTime,
	}
}

// NewStop builds a STOP message published at the caller-supplied key,
// derived from the configured end bound when one is set.
func NewStop(workerID int, key uint32) Message {
	return Message{
		Kind:      Stop,
		WorkerID:  workerID,
		closeTime: key,
	}
}

// PublicationKey returns the 64-bit sortable key the merger uses to
// consume messages from a given worker in non-decreasing order. The
// high 32 bits are the epoch-second close boundary; the low 32 bits
// are always zero.
func (m Message) PublicationKey() uint64 {
	return uint64(m.closeTime) << 32
}
