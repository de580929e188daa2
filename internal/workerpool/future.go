package workerpool

import (
	"context"
	"fmt"
)

// Future is the pending result of a task submitted with Go.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go submits fn to the pool and returns a handle to its result.
// It blocks exactly as long as Pool.Submit does.
func Go[T any](ctx context.Context, pool *Pool, fn func() (T, error)) (*Future[T], error) {
	future := &Future[T]{done: make(chan struct{})}

	err := pool.Submit(ctx, func() {
		defer close(future.done)

		defer func() {
			if r := recover(); r != nil {
				future.err = fmt.Errorf("task panicked: %v", r)
			}
		}()

		future.value, future.err = fn()
	})
	if err != nil {
		return nil, err
	}

	return future, nil
}

// Wait blocks until the task has finished and returns its result.
func (f *Future[T]) Wait() (T, error) {
	<-f.done

	return f.value, f.err
}
