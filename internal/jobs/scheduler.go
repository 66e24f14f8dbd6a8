package jobs

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Task is one unit of background work. ctx is cancelled when the scheduler
// gives up waiting during shutdown.
type Task func(ctx context.Context)

// Scheduler hands tasks to independent background workers.
type Scheduler interface {
	Submit(task Task) error
	Shutdown(ctx context.Context) error
}

// GoScheduler runs each task on its own goroutine. With a positive limit at
// most limit tasks run at once and the rest wait their turn.
type GoScheduler struct {
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewGoScheduler(limit int) *GoScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &GoScheduler{ctx: ctx, cancel: cancel}
	if limit > 0 {
		s.sem = semaphore.NewWeighted(int64(limit))
	}
	return s
}

func (s *GoScheduler) Submit(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSchedulerClosed
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.sem != nil {
			if err := s.sem.Acquire(s.ctx, 1); err != nil {
				return
			}
			defer s.sem.Release(1)
			// Acquire can win against a cancellation that happened first.
			if s.ctx.Err() != nil {
				return
			}
		}
		task(s.ctx)
	}()
	return nil
}

// Shutdown stops accepting tasks and waits for running ones. If ctx expires
// first, running tasks are cancelled and Shutdown returns ctx.Err() once they
// have returned.
func (s *GoScheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

var _ Scheduler = (*GoScheduler)(nil)
