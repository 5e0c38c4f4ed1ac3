package worker

import "errors"

// Sentinel errors returned by pool lifecycle and submit operations.
var (
	// ErrPoolNotStarted is returned by Submit before Start has run.
	ErrPoolNotStarted = errors.New("worker pool not started")

	// ErrPoolStopped is returned by Submit once Stop has begun.
	ErrPoolStopped = errors.New("worker pool stopped")

	// ErrPoolAlreadyStarted is returned by a second Start call.
	ErrPoolAlreadyStarted = errors.New("worker pool already started")

	// ErrQueueFull is returned by Submit when the item was dropped because
	// the queue is at capacity.
	ErrQueueFull = errors.New("worker pool queue full")

	// ErrNilProcessor is returned by NewPool when no processor is given.
	ErrNilProcessor = errors.New("processor function cannot be nil")

	// ErrStopTimeout is returned by Stop when workers do not drain in time.
	ErrStopTimeout = errors.New("timeout waiting for workers to stop")
)
