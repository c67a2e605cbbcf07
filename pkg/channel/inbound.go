// Package channel implements the bounded message queues that sit between a
// transport (HTTP or WebSocket connection loop) and a Handler. Inbound
// queues the events a Handler receives; Outbound is the single-slot
// rendezvous a Handler sends through. Both provide backpressure: a slow
// Handler stalls the producer instead of the queue growing without bound.
package channel

import (
	"context"
	"sync"

	"github.com/eapache/queue"

	"github.com/joepatol/aras/pkg/asgi"
)

// Inbound is a bounded FIFO of asgi.Message, backed by eapache/queue's
// amortized-growth ring buffer. Push never blocks the producer past the
// configured capacity; once full, Push blocks until a Pop makes room or ctx
// is cancelled. This lets a connection loop push http.request /
// http.disconnect events without unbounded memory growth when a Handler
// falls behind.
type Inbound struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	q        *queue.Queue
	cap      int
	closed   bool
	closeErr error
}

// NewInbound creates an Inbound queue with room for at most capacity
// messages before Push blocks.
func NewInbound(capacity int) *Inbound {
	if capacity < 1 {
		capacity = 1
	}
	in := &Inbound{q: queue.New(), cap: capacity}
	in.notEmpty = sync.NewCond(&in.mu)
	in.notFull = sync.NewCond(&in.mu)
	return in
}

// Push enqueues msg, blocking while the queue is at capacity. It returns
// ctx.Err() if ctx is cancelled before room becomes available, or the
// error passed to Close if the queue has already been closed.
func (in *Inbound) Push(ctx context.Context, msg asgi.Message) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	for in.q.Length() >= in.cap && !in.closed {
		if !waitWithContext(ctx, &in.mu, in.notFull) {
			return ctx.Err()
		}
	}
	if in.closed {
		return in.closeErr
	}
	in.q.Add(msg)
	in.notEmpty.Signal()
	return nil
}

// Pop dequeues the next message, blocking until one is available, ctx is
// cancelled, or the queue is closed with no remaining messages.
func (in *Inbound) Pop(ctx context.Context) (asgi.Message, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	for in.q.Length() == 0 {
		if in.closed {
			return asgi.Message{}, in.closeErr
		}
		if !waitWithContext(ctx, &in.mu, in.notEmpty) {
			return asgi.Message{}, ctx.Err()
		}
	}
	msg := in.q.Remove().(asgi.Message)
	in.notFull.Signal()
	return msg, nil
}

// Close marks the queue closed; pending and future Pop calls on an empty
// queue return err. Messages already queued remain available to Pop until
// drained.
func (in *Inbound) Close(err error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return
	}
	in.closed = true
	in.closeErr = err
	in.notEmpty.Broadcast()
	in.notFull.Broadcast()
}

// waitWithContext waits on cond, honoring ctx cancellation. The caller must
// hold mu (cond's locker) on entry; it is re-acquired on return. Reports
// false if ctx was done.
func waitWithContext(ctx context.Context, mu *sync.Mutex, cond *sync.Cond) bool {
	if ctx.Err() != nil {
		return false
	}
	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		close(done)
		// Wake every waiter so the cancelled one can re-check ctx.Err();
		// others will simply loop back to waiting.
		mu.Lock()
		cond.Broadcast()
		mu.Unlock()
	})
	defer stop()

	cond.Wait()
	select {
	case <-done:
		return ctx.Err() == nil
	default:
		return true
	}
}
