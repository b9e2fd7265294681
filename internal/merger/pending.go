package merger

import "github.com/packetloom/tracecore/internal/pluginapi"

// pendingRecord is one interval awaiting contributions. artifacts is
// filled in arrival order (slot threadsEnded at the time each
// INTERVAL_END arrives), not by worker id; a nil row means that slot has
// not been filled yet.
type pendingRecord struct {
	intervalID   uint32
	intervalTime uint32
	threadsEnded uint32
	rotateAfter  bool
	artifacts    []pluginapi.ArtifactRow
}

// pendingList is a slice-backed ordered deque. It is always short,
// bounded by the number of straggler workers. Records are appended at
// the tail and only ever completed/removed from the head.
type pendingList struct {
	records []*pendingRecord
}

func (p *pendingList) find(intervalID uint32) *pendingRecord {
	for _, r := range p.records {
		if r.intervalID == intervalID {
			return r
		}
	}
	return nil
}

func (p *pendingList) append(r *pendingRecord) {
	p.records = append(p.records, r)
}

func (p *pendingList) head() *pendingRecord {
	if len(p.records) == 0 {
		return nil
	}
	return p.records[0]
}

// removeHead detaches and returns the oldest pending record. Callers
// must only invoke this once that record's barrier has completed.
func (p *pendingList) removeHead() *pendingRecord {
	if len(p.records) == 0 {
		return nil
	}
	r := p.records[0]
	p.records = p.records[1:]
	return r
}

func (p *pendingList) len() int {
	return len(p.records)
}
