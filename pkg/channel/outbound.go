package channel

import (
	"context"
	"sync"

	"github.com/joepatol/aras/pkg/asgi"
)

// Outbound is a single-slot rendezvous channel: Send blocks until the
// previous value has been consumed by Recv. Unlike Inbound's bounded
// buffer, the outbound direction holds at most one message in flight,
// matching the send-then-await-drain discipline a Handler uses when
// streaming a response body one chunk at a time.
type Outbound struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond
	full     bool
	msg      asgi.Message
	closed   bool
	closeErr error
}

// NewOutbound creates an empty Outbound rendezvous.
func NewOutbound() *Outbound {
	o := &Outbound{}
	o.notFull = sync.NewCond(&o.mu)
	o.notEmpty = sync.NewCond(&o.mu)
	return o
}

// Send blocks until the slot is empty, then deposits msg.
func (o *Outbound) Send(ctx context.Context, msg asgi.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for o.full && !o.closed {
		if !waitWithContext(ctx, &o.mu, o.notFull) {
			return ctx.Err()
		}
	}
	if o.closed {
		return o.closeErr
	}
	o.msg = msg
	o.full = true
	o.notEmpty.Signal()
	return nil
}

// Recv blocks until a message is available, draining the slot so the next
// Send can proceed.
func (o *Outbound) Recv(ctx context.Context) (asgi.Message, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for !o.full {
		if o.closed {
			return asgi.Message{}, o.closeErr
		}
		if !waitWithContext(ctx, &o.mu, o.notEmpty) {
			return asgi.Message{}, ctx.Err()
		}
	}
	msg := o.msg
	o.msg = asgi.Message{}
	o.full = false
	o.notFull.Signal()
	return msg, nil
}

// Close unblocks any pending Send/Recv with err.
func (o *Outbound) Close(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.closeErr = err
	o.notFull.Broadcast()
	o.notEmpty.Broadcast()
}
