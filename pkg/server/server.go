// Package server hosts the I/O Reactor: it accepts TCP connections, drives
// the HTTP/1.1 and WebSocket codecs, and bridges each request/connection
// into the asgi.Handler contract via pkg/channel and pkg/executor.
package server

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/joepatol/aras/internal/alog"
	"github.com/joepatol/aras/pkg/asgi"
	"github.com/joepatol/aras/pkg/executor"
	"github.com/joepatol/aras/pkg/socket"
)

// Config holds server configuration. Fields map to the external interface
// of CLI flags and environment, translated once at startup.
type Config struct {
	// Addr is the TCP address to listen on (e.g., ":8000").
	Addr string

	// Handler is the application entry point invoked for every HTTP
	// request and WebSocket connection.
	Handler asgi.Handler

	// ReadTimeout is stored and defaulted by New, but the connection loop
	// does not apply it: the only read deadline it sets comes from
	// IdleTimeout, so there is no separate slow-header timeout.
	ReadTimeout time.Duration

	// IdleTimeout bounds how long a keep-alive connection may sit idle
	// between requests before the server closes it.
	IdleTimeout time.Duration

	// MaxHeaderBytes is stored and defaulted by New but not passed to the
	// parser, which applies its own fixed limit of
	// httpcodec.MaxRequestLineSize + httpcodec.MaxHeadersSize.
	MaxHeaderBytes int

	// MaxRequestBodySize holds the body limit (set by the CLI from
	// --max-size-kb). The connection loop and bridge do not read it, so
	// request bodies, chunked or not, are not capped.
	MaxRequestBodySize int

	// MaxKeepAliveRequests bounds how many requests may be served on one
	// connection before it is closed. 0 means unlimited.
	MaxKeepAliveRequests int

	// ReadBufferSize and WriteBufferSize are passed to the WebSocket
	// connection after an upgrade; the HTTP loop uses httpcodec's pooled
	// bufio reader and writer regardless of these values.
	ReadBufferSize  int
	WriteBufferSize int

	// MaxConcurrentConnections bounds accepted connections in flight. 0
	// means unlimited.
	MaxConcurrentConnections int

	// MaxConcurrentRequests bounds how many Handler invocations may run
	// at once across all connections (admission control). 0 disables it.
	MaxConcurrentRequests int64

	// DisableKeepalive forces every connection to close after one request.
	DisableKeepalive bool

	// SocketTuning configures TCP_NODELAY / socket buffer sizes / keepalive
	// applied to every accepted connection.
	SocketTuning *socket.Config

	// Logger receives structured connection- and request-scoped log lines.
	Logger alog.Logger

	// Metrics, if non-nil, receives counter/gauge updates for admission and
	// backpressure observability. Nil disables metrics entirely.
	Metrics *Metrics
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:                     ":8000",
		ReadTimeout:              60 * time.Second,
		IdleTimeout:              120 * time.Second,
		MaxHeaderBytes:           1 << 20,
		MaxRequestBodySize:       10 << 20,
		MaxKeepAliveRequests:     0,
		ReadBufferSize:           4096,
		WriteBufferSize:          4096,
		MaxConcurrentConnections: 0,
		MaxConcurrentRequests:    0,
		DisableKeepalive:         false,
		SocketTuning:             socket.DefaultConfig(),
	}
}

// Stats captures server-wide counters surfaced to /healthz-style consumers
// and to the prometheus registry in metrics.go.
type Stats struct {
	TotalConnections  atomic.Uint64
	ActiveConnections atomic.Int64
	TotalRequests     atomic.Uint64
	ConnectionErrors  atomic.Uint64
	RequestErrors     atomic.Uint64
	StartTime         time.Time
}

func (s *Stats) Duration() time.Duration { return time.Since(s.StartTime) }

// Server is the I/O Reactor: it owns the listener, the connection set, and
// the Executor admission gate shared by every connection.
type Server struct {
	config Config
	exec   *executor.Executor
	stats  Stats

	listener net.Listener

	mu       sync.RWMutex
	shutdown atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup

	conns   map[net.Conn]struct{}
	connsMu sync.Mutex

	connSem chan struct{}
}

// New constructs a Server. The Executor is created here so its worker pool
// lives for the process lifetime, shared across every connection.
func New(config Config) *Server {
	if config.Handler == nil {
		panic("server: Handler is required")
	}
	if config.Addr == "" {
		config.Addr = ":8000"
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 60 * time.Second
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = 120 * time.Second
	}
	if config.MaxHeaderBytes == 0 {
		config.MaxHeaderBytes = 1 << 20
	}
	if config.MaxRequestBodySize == 0 {
		config.MaxRequestBodySize = 10 << 20
	}
	if config.ReadBufferSize == 0 {
		config.ReadBufferSize = 4096
	}
	if config.WriteBufferSize == 0 {
		config.WriteBufferSize = 4096
	}
	if config.Logger == nil {
		config.Logger = alog.New(asgi.LogInfo, nil)
	}

	s := &Server{
		config: config,
		done:   make(chan struct{}),
		conns:  make(map[net.Conn]struct{}),
		exec: executor.New(executor.Config{
			MaxConcurrent: config.MaxConcurrentRequests,
		}),
	}
	s.stats.StartTime = time.Now()

	if config.MaxConcurrentConnections > 0 {
		s.connSem = make(chan struct{}, config.MaxConcurrentConnections)
	}

	return s
}

// Stats returns a snapshot pointer to the live counters.
func (s *Server) Stats() *Stats { return &s.stats }

// ListenAndServe listens on the configured address and serves requests
// until Shutdown or Close is called.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	if err := socket.ApplyListener(ln, s.config.SocketTuning); err != nil {
		s.config.Logger.Warn("socket: listener tuning failed", "error", err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on l, applying socket tuning to each, and
// dispatches them to per-connection goroutines.
func (s *Server) Serve(l net.Listener) error {
	s.listener = l
	defer l.Close()

	for {
		if s.shutdown.Load() {
			return nil
		}

		if s.connSem != nil {
			select {
			case s.connSem <- struct{}{}:
			case <-s.done:
				return nil
			}
		}

		conn, err := l.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			s.stats.ConnectionErrors.Add(1)
			if s.config.Metrics != nil {
				s.config.Metrics.ConnectionErrors.Inc()
			}
			if s.connSem != nil {
				<-s.connSem
			}
			continue
		}

		if s.config.SocketTuning != nil {
			_ = socket.Apply(conn, s.config.SocketTuning)
		}

		s.stats.TotalConnections.Add(1)
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// Shutdown stops accepting new connections, signals the lifespan-independent
// drain, and waits for in-flight connections to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	if s.listener != nil {
		s.listener.Close()
	}
	close(s.done)

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		s.exec.Close()
		return nil
	case <-ctx.Done():
		s.closeAllConnections()
		s.exec.Close()
		return ctx.Err()
	}
}

// Close immediately tears down the server and all active connections.
func (s *Server) Close() error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	if s.listener != nil {
		s.listener.Close()
	}
	close(s.done)
	s.closeAllConnections()
	s.wg.Wait()
	s.exec.Close()
	return nil
}

func (s *Server) trackConnection(conn net.Conn) {
	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
	s.stats.ActiveConnections.Add(1)
	if s.config.Metrics != nil {
		s.config.Metrics.ActiveConnections.Inc()
	}
}

func (s *Server) untrackConnection(conn net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
	s.stats.ActiveConnections.Add(-1)
	if s.config.Metrics != nil {
		s.config.Metrics.ActiveConnections.Dec()
	}
}

func (s *Server) closeAllConnections() {
	s.connsMu.Lock()
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.connsMu.Unlock()
	for _, conn := range conns {
		conn.Close()
	}
}

// newConnID mints a correlation id for one accepted connection, stable
// across every request served on it.
func newConnID() string {
	return uuid.NewString()
}
