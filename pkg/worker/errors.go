package worker

import "github.com/c360/vizflow/errors"

// Pool errors.
var (
	ErrPoolNotStarted     = errors.New("worker pool not started")
	ErrPoolStopped        = errors.New("worker pool stopped")
	ErrPoolAlreadyStarted = errors.New("worker pool already started")
	ErrQueueFull          = errors.New("worker pool queue full")
	ErrNilProcessor       = errors.New("worker pool needs a work function")
	ErrStopTimeout        = errors.New("workers did not stop in time")
)
