package pipeline

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Submit on a closed pool.
var ErrClosed = errors.New("pipeline: executor closed")

// Executor runs compile tasks.
type Executor interface {
	Submit(task func()) error
}

// Pool is the shared background executor. Each task runs on its own
// goroutine; a positive limit bounds how many run at once. Pool goroutines
// never keep the process alive.
type Pool struct {
	sem *semaphore.Weighted

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool creates a pool running at most limit tasks at once.
// A limit of 0 or less means unbounded.
func NewPool(limit int) *Pool {
	p := &Pool{}
	if limit > 0 {
		p.sem = semaphore.NewWeighted(int64(limit))
	}
	return p
}

// Submit schedules task.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		if p.sem != nil {
			// Acquire only fails on a canceled context.
			_ = p.sem.Acquire(context.Background(), 1)
			defer p.sem.Release(1)
		}
		task()
	}()
	return nil
}

// Close stops accepting tasks. Running and queued tasks still finish.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

type inline struct{}

func (inline) Submit(task func()) error {
	task()
	return nil
}

// Inline runs each task on the submitting goroutine before Submit returns.
var Inline Executor = inline{}
