// Package lifespan drives the startup/shutdown dialogue with a Handler: it
// sends lifespan.startup (then lifespan.shutdown) and waits for the matching
// complete/failed reply, tolerating applications that never registered a
// lifespan handler at all.
package lifespan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joepatol/aras/pkg/asgi"
	"github.com/joepatol/aras/pkg/channel"
)

// DefaultTimeout bounds how long the startup or shutdown dialogue may take
// before the Coordinator gives up and treats it as unsupported.
const DefaultTimeout = 30 * time.Second

// ErrStartupFailed is returned by Startup when the Handler replies with
// lifespan.startup.failed.
var ErrStartupFailed = errors.New("lifespan: startup failed")

// Coordinator runs one lifespan scope for the lifetime of the server
// process. It is created once at process start; Start and Shutdown are each
// called once.
type Coordinator struct {
	handler asgi.Handler
	scope   *asgi.Scope
	timeout time.Duration

	in  *channel.Inbound
	out *channel.Outbound

	// supported becomes false if the application never engages with the
	// lifespan protocol within timeout (an ASGI app with no lifespan
	// awareness simply never reads from receive), in which case Shutdown
	// degrades to a silent no-op instead of blocking forever.
	supported bool
}

// New constructs a Coordinator. handler is invoked once, for the entire
// process lifetime, with ScopeType LifespanScope.
func New(handler asgi.Handler, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Coordinator{
		handler: handler,
		scope:   &asgi.Scope{Type: asgi.LifespanScope, State: map[string]any{}},
		timeout: timeout,
		in:      channel.NewInbound(4),
		out:     channel.NewOutbound(),
	}
}

// Start launches the Handler goroutine and sends lifespan.startup, waiting
// up to the configured timeout for a reply. If no reply arrives within the
// timeout the lifespan protocol is treated as unsupported: Start returns nil
// and Shutdown becomes a no-op.
func (c *Coordinator) Start(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		err := c.handler(ctx, c.scope, c.receive, c.send)
		done <- err
	}()

	if err := c.in.Push(ctx, asgi.Message{Type: asgi.MessageLifespanStartup}); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.out.Recv(waitCtx)
	if err != nil {
		// No reply in time: application does not speak lifespan.
		c.supported = false
		return nil
	}

	switch msg.Type {
	case asgi.MessageLifespanStartupComplete:
		c.supported = true
		return nil
	case asgi.MessageLifespanStartupFailed:
		c.supported = true
		return fmt.Errorf("%w: %s", ErrStartupFailed, msg.Message)
	default:
		return fmt.Errorf("lifespan: unexpected message %q during startup", msg.Type)
	}
}

// Shutdown sends lifespan.shutdown and waits for the matching reply. If the
// application never engaged with startup, Shutdown returns immediately.
// Per this server's resolution of the shutdown-silence question, a timeout
// waiting for lifespan.shutdown.complete is treated as a successful,
// silent shutdown rather than an error: an application that exits its
// lifespan handler's receive loop without replying has nothing left to
// report, not a fault.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	if !c.supported {
		return nil
	}

	if err := c.in.Push(ctx, asgi.Message{Type: asgi.MessageLifespanShutdown}); err != nil {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.out.Recv(waitCtx)
	if err != nil {
		return nil
	}
	if msg.Type == asgi.MessageLifespanShutdownFailed {
		return fmt.Errorf("lifespan: shutdown failed: %s", msg.Message)
	}
	return nil
}

func (c *Coordinator) receive() (asgi.Message, error) {
	return c.in.Pop(context.Background())
}

func (c *Coordinator) send(msg asgi.Message) error {
	return c.out.Send(context.Background(), msg)
}
