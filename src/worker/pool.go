package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrBusy is reported when a job is dropped because the queue is full.
var ErrBusy = errors.New("busy, please retry")

// Task is one unit of background work.
type Task func(ctx context.Context) (any, error)

// ResultCallback is invoked on task completion (from a worker goroutine).
// The event loop should pass a closure that posts back into the loop safely.
type ResultCallback func(value any, err error)

// Pool is a fixed-size worker pool with a 1-slot input queue (strict back-pressure).
type Pool struct {
	jobs      chan job
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type job struct {
	ctx  context.Context
	task Task
	cb   ResultCallback
}

// New creates a worker pool. Size defaults to 1 when size<=0. Queue is 1 slot.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{jobs: make(chan job, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				value, err := run(j)
				j.cb(value, err)
			}
		}()
	}
}

func run(j job) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorw("Worker: task panicked", "panic", r)
			err = &PanicError{Value: r}
		}
	}()
	if err := j.ctx.Err(); err != nil {
		return nil, err
	}
	return j.task(j.ctx)
}

// PanicError reports a task that panicked instead of returning.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return "worker: task panicked" }

// Submit enqueues a job if the single-slot queue is free. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, task Task, cb ResultCallback) bool {
	select {
	case p.jobs <- job{ctx: ctx, task: task, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.jobs) })
	p.wg.Wait()
}
