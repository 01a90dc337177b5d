// Package stopflag implements the durable stop-signal channel between the
// control plane and a running bot session. The signaler (API process) and the
// observer (bot runner) are different OS processes, so the flag must survive
// process boundaries.
package stopflag

// Flag is a per-session stop signal. Set and Clear are idempotent; IsSet is
// polled by the session monitor loop, never blocked on.
type Flag interface {
	Set(sessionID string) error
	IsSet(sessionID string) bool
	Clear(sessionID string) error
}
