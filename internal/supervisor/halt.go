package supervisor

import "go.uber.org/atomic"

// haltToken is the shared shutdown primitive: two independent atomic
// booleans on one type. requested is set by the signal handler and
// gates the outer source loop; traced is set by a source's merger once
// every worker's STOP has been seen, and is what unblocks that
// source's run.
type haltToken struct {
	requested atomic.Bool
	traced    atomic.Bool
}

func newHaltToken() *haltToken {
	return &haltToken{}
}

// Request marks a shutdown as requested. Idempotent.
func (h *haltToken) Request() {
	h.requested.Store(true)
}

// Requested reports whether a shutdown has been requested.
func (h *haltToken) Requested() bool {
	return h.requested.Load()
}

// MarkTraced records that the current source's merger has seen every
// worker's STOP.
func (h *haltToken) MarkTraced() {
	h.traced.Store(true)
}

// Traced reports whether the current source's merger has halted.
func (h *haltToken) Traced() bool {
	return h.traced.Load()
}

// resetTrace clears the per-source half of the token so the next
// source starts with a fresh wait, while requested (process-lifetime)
// survives.
func (h *haltToken) resetTrace() {
	h.traced.Store(false)
}
