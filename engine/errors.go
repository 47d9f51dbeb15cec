package engine

import "errors"

var (
	// ErrIncompatibleType is returned when connecting ports whose signal
	// kinds do not match (and the pair is not CV modulating a control).
	ErrIncompatibleType = errors.New("cannot connect ports, incompatible types")

	// ErrCycleRejected is returned when a connection would introduce a cycle
	// into the port graph.
	ErrCycleRejected = errors.New("connection would create a cycle")

	// ErrMissingOwner is returned when a port identifier resolves to no live
	// object.
	ErrMissingOwner = errors.New("identifier resolves to no live port")

	// ErrStillConnected is returned when freeing a port that still has
	// connections. The free is refused; callers must disconnect first.
	ErrStillConnected = errors.New("port still has connections")

	// ErrPoolExhausted means no recording event could be allocated from the
	// pool. The cycle's notification is dropped; signal processing is never
	// blocked waiting for a free slot.
	ErrPoolExhausted = errors.New("recording event pool exhausted")
)
