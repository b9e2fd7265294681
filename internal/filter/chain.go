// Package filter implements the packet-admission chain: each link
// decides whether to reject a packet outright or hand it to the next
// link, and the packet is admitted only if every link in turn lets it
// through.
package filter

import "github.com/packetloom/tracecore/internal/core"

// Filter is one link in the chain. Admit returns false to reject the
// packet without consulting the rest of the chain, or defers to next.
type Filter interface {
	Admit(pkt *core.DecodedPacket, next *Chain) bool
}

// Chain is an immutable, singly-linked sequence of Filters built once at
// worker start and shared by every packet on that worker.
type Chain struct {
	current Filter
	next    *Chain
}

// Admit runs the packet through the chain, starting at this link. An
// empty chain (current == nil) admits everything; it is the terminal
// node appended by New.
func (c *Chain) Admit(pkt *core.DecodedPacket) bool {
	if c == nil || c.current == nil {
		return true
	}
	return c.current.Admit(pkt, c.next)
}

// Config selects which independent boolean filters are active, plus an
// optional named tree filter, matching the global configuration fields
// remove_spoofed/remove_erratic/remove_unrouted/tree_filter_name.
type Config struct {
	RemoveSpoofed  bool
	RemoveErratic  bool
	RemoveUnrouted bool
	TreeFilterName string
}

// New builds the filter chain in the fixed order spoofed, erratic,
// unrouted, tree.
func New(cfg Config) *Chain {
	var filters []Filter
	if cfg.RemoveSpoofed {
		filters = append(filters, spoofedFilter{})
	}
	if cfg.RemoveErratic {
		filters = append(filters, erraticFilter{})
	}
	if cfg.RemoveUnrouted {
		filters = append(filters, unroutedFilter{})
	}
	if cfg.TreeFilterName != "" {
		filters = append(filters, newTreeFilter(cfg.TreeFilterName))
	}
	return build(filters)
}

func build(filters []Filter) *Chain {
	tail := &Chain{}
	for i := len(filters) - 1; i >= 0; i-- {
		tail = &Chain{current: filters[i], next: tail}
	}
	return tail
}
