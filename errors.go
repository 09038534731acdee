package mdns

import "fmt"

// BindError is returned when a responder engine fails to create, configure,
// or bind its UDP socket, or fails to join the mDNS multicast group.
type BindError struct {
	Family string // "ipv4" or "ipv6"
	Op     string
	Err    error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("mdns: %s bind: %s: %v", e.Family, e.Op, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// ValidationError is returned synchronously from Register when a service's
// parameters don't satisfy the wire-format constraints (TXT entry too long,
// malformed type/instance name).
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mdns: invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ReceiveError wraps a fatal error on an engine's socket receive path. It
// terminates the owning engine; other engines are unaffected.
type ReceiveError struct {
	Family string
	Err    error
}

func (e *ReceiveError) Error() string {
	return fmt.Sprintf("mdns: %s receive: %v", e.Family, e.Err)
}

func (e *ReceiveError) Unwrap() error { return e.Err }

// TransmitError wraps a non-fatal error on an engine's socket send path. The
// offending datagram is dropped and the engine continues; this type exists
// so logging call sites can format it uniformly, not so it ever escapes to
// a caller.
type TransmitError struct {
	Family string
	Dest   string
	Err    error
}

func (e *TransmitError) Error() string {
	return fmt.Sprintf("mdns: %s transmit to %s: %v", e.Family, e.Dest, e.Err)
}

func (e *TransmitError) Unwrap() error { return e.Err }
