package scheduler

import (
	"context"
)

// Work is a unit of work executed by the pool. The context is cancelled when
// the caller stops the future or the scheduler closes.
type Work[T any] func(ctx context.Context) (T, error)

// Result carries the outcome of one unit of work.
type Result[T any] struct {
	Data T
	Err  error
}

// Future is a handle to work that has been submitted but may not have
// finished yet.
type Future[T any] struct {
	input  chan T
	cancel context.CancelFunc
}

func NewFuture[T any](input chan T, cancel context.CancelFunc) *Future[T] {
	return &Future[T]{
		input:  input,
		cancel: cancel,
	}
}

// C returns the channel the result is delivered on. It receives exactly one
// value.
func (f *Future[T]) C() chan T {
	return f.input
}

// Stop cancels the context the work runs under.
func (f *Future[T]) Stop() {
	f.cancel()
}
