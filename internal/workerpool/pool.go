// Package workerpool provides a fixed-size pool whose submissions block once
// every worker is busy.
//
// Unlike a pool fed by an unbounded queue, a producer that outpaces the
// workers is parked inside Submit, so the amount of work (and the memory it
// references) waiting on the pool never exceeds the pool size.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed is returned when work is submitted after Shutdown.
var ErrPoolClosed = errors.New("worker pool is shut down")

// Pool runs at most the given number of tasks concurrently.
type Pool struct {
	permits *semaphore.Weighted
	wg      sync.WaitGroup

	mtx    sync.Mutex
	closed bool
}

// New returns a pool with the given number of permits. Sizes below one are raised to one.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}

	return &Pool{
		permits: semaphore.NewWeighted(int64(size)),
	}
}

// Submit blocks until a permit is free, then runs task on its own goroutine.
// The permit is released when task returns.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	const errMessage = "failed to submit task: %w"

	p.mtx.Lock()
	if p.closed {
		p.mtx.Unlock()

		return fmt.Errorf(errMessage, ErrPoolClosed)
	}

	p.wg.Add(1)
	p.mtx.Unlock()

	if err := p.permits.Acquire(ctx, 1); err != nil {
		p.wg.Done()

		return fmt.Errorf(errMessage, err)
	}

	go func() {
		defer p.wg.Done()
		defer p.permits.Release(1)

		task()
	}()

	return nil
}

// Shutdown stops accepting work and waits until in-flight tasks have finished.
// A pool must not be reused after Shutdown.
func (p *Pool) Shutdown() {
	p.mtx.Lock()
	p.closed = true
	p.mtx.Unlock()

	p.wg.Wait()
}
