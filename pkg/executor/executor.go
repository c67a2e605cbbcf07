// Package executor dispatches Handler invocations across a fixed pool of
// worker goroutines sized to GOMAXPROCS, gated by a weighted semaphore that
// bounds how many requests may run concurrently (admission control) and
// enforces a hard wall-clock ceiling per invocation.
package executor

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Submit once the Executor has been closed.
var ErrClosed = errors.New("executor: closed")

// ErrAdmissionTimeout is returned by Submit, without waiting, when admission
// control is configured and no admission slot is free.
var ErrAdmissionTimeout = errors.New("executor: admission timeout, server at capacity")

// Task is a unit of work submitted to the pool. It receives a context
// bound to both the caller's ctx and the Executor's hard deadline (if any).
type Task func(ctx context.Context)

// Config controls pool sizing and admission.
type Config struct {
	// Workers is the number of goroutines draining the task queue. Zero
	// selects runtime.GOMAXPROCS(0).
	Workers int

	// MaxConcurrent bounds how many tasks may be admitted (running or
	// queued awaiting a worker) at once. Zero disables admission control.
	MaxConcurrent int64

	// TaskTimeout, if non-zero, is a hard ceiling applied to every task's
	// context regardless of the caller's own deadline.
	TaskTimeout time.Duration
}

// Executor is a bounded worker pool with admission control: a fixed set of
// worker goroutines drains one shared, buffered task channel.
type Executor struct {
	queue   chan Task
	sem     *semaphore.Weighted
	timeout time.Duration
	inFlight atomic.Int64

	closeCh chan struct{}
	closed  sync.Once
	wg      sync.WaitGroup
}

// New creates an Executor and starts its worker goroutines.
func New(cfg Config) *Executor {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	e := &Executor{
		queue:   make(chan Task, workers*4),
		closeCh: make(chan struct{}),
		timeout: cfg.TaskTimeout,
	}
	if cfg.MaxConcurrent > 0 {
		e.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.runWorker()
	}
	return e
}

func (e *Executor) runWorker() {
	defer e.wg.Done()
	for {
		select {
		case task := <-e.queue:
			e.execute(task)
		case <-e.closeCh:
			return
		}
	}
}

func (e *Executor) execute(task Task) {
	defer func() { recover() }()
	ctx := context.Background()
	var cancel context.CancelFunc
	if e.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	task(ctx)
}

// Submit enqueues task for execution. When admission control is configured
// (MaxConcurrent > 0), it fails fast with ErrAdmissionTimeout if no slot is
// free rather than queueing the caller indefinitely — a request that can't
// be admitted right now gets a rejection (503-class disposition), not a
// wait of unbounded length. The semaphore is released automatically once
// task returns.
func (e *Executor) Submit(ctx context.Context, task Task) error {
	select {
	case <-e.closeCh:
		return ErrClosed
	default:
	}

	if e.sem != nil {
		if !e.sem.TryAcquire(1) {
			return ErrAdmissionTimeout
		}
	}

	e.inFlight.Add(1)
	wrapped := func(taskCtx context.Context) {
		defer e.inFlight.Add(-1)
		if e.sem != nil {
			defer e.sem.Release(1)
		}
		taskCtx, cancel := context.WithCancel(taskCtx)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
		task(taskCtx)
	}

	select {
	case e.queue <- wrapped:
		return nil
	case <-e.closeCh:
		e.inFlight.Add(-1)
		if e.sem != nil {
			e.sem.Release(1)
		}
		return ErrClosed
	case <-ctx.Done():
		e.inFlight.Add(-1)
		if e.sem != nil {
			e.sem.Release(1)
		}
		return ctx.Err()
	}
}

// InFlight reports how many tasks are currently admitted (queued or
// running), for the admission-gauge metric.
func (e *Executor) InFlight() int64 {
	return e.inFlight.Load()
}

// Close stops accepting new tasks and waits for in-flight workers to drain.
func (e *Executor) Close() {
	e.closed.Do(func() {
		close(e.closeCh)
	})
	e.wg.Wait()
}
