package filter

import "github.com/packetloom/tracecore/internal/core"

// spoofedFilter rejects packets whose source address could not
// plausibly originate from the public Internet (loopback, unspecified,
// or multicast used as a source). A production tree would consult BGP
// prefix data; this is the illustrative predicate the worker exercises.
type spoofedFilter struct{}

func (spoofedFilter) Admit(pkt *core.DecodedPacket, next *Chain) bool {
	src := pkt.SrcIP
	if src.IsLoopback() || src.IsUnspecified() || src.IsMulticast() {
		return false
	}
	return next.Admit(pkt)
}

// erraticFilter rejects packets with nonsensical transport ports, e.g.
// both source and destination port zero on a port-bearing protocol.
type erraticFilter struct{}

func (erraticFilter) Admit(pkt *core.DecodedPacket, next *Chain) bool {
	if (pkt.Protocol == 6 || pkt.Protocol == 17) && pkt.SrcPort == 0 && pkt.DstPort == 0 {
		return false
	}
	return next.Admit(pkt)
}

// unroutedFilter rejects packets whose source or destination is not a
// global unicast address as net/netip classifies it (loopback,
// link-local, multicast, unspecified). Private and documentation
// ranges count as global unicast and are admitted.
type unroutedFilter struct{}

func (unroutedFilter) Admit(pkt *core.DecodedPacket, next *Chain) bool {
	if !pkt.SrcIP.IsGlobalUnicast() || !pkt.DstIP.IsGlobalUnicast() {
		return false
	}
	return next.Admit(pkt)
}

// treeFilter stands in for a named, operator-supplied filter tree
// (BPF-like expression trees keyed by name in production deployments).
// Without a bundled tree database it admits everything, but keeps the
// configured name so diagnostics can report which tree was requested.
type treeFilter struct {
	name string
}

func newTreeFilter(name string) treeFilter {
	return treeFilter{name: name}
}

func (treeFilter) Admit(pkt *core.DecodedPacket, next *Chain) bool {
	return next.Admit(pkt)
}
