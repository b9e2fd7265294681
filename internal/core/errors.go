package core

import "errors"

// Sentinel errors; callers match with errors.Is rather than string
// comparison.
var (
	ErrPacketTooShort   = errors.New("tracecore: packet too short")
	ErrUnsupportedProto = errors.New("tracecore: unsupported protocol")

	ErrPluginNotFound   = errors.New("tracecore: plugin not found")
	ErrPluginInitFailed = errors.New("tracecore: plugin init failed")

	ErrConfigInvalid = errors.New("tracecore: invalid configuration")

	// ErrBarrierProtocol indicates the control-message protocol was
	// violated by a worker (e.g. FILE_ROTATE with no matching pending
	// interval record).
	ErrBarrierProtocol = errors.New("tracecore: barrier protocol violation")
)
