// Package cli implements the aras command line: a serve subcommand that
// runs a registered asgi.Handler behind the HTTP/1.1 and WebSocket server.
// Go has no equivalent of ASGI's dynamic "module:attribute" import string,
// so an embedding program registers its Handler at init/main time via
// Register, then calls Execute from its own main func.
package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joepatol/aras/internal/alog"
	"github.com/joepatol/aras/pkg/asgi"
	"github.com/joepatol/aras/pkg/lifespan"
	"github.com/joepatol/aras/pkg/server"
)

var handlerRegistry asgi.Handler

// Register installs the application Handler the serve command will run.
// Call this from an embedding main package before calling Execute.
func Register(h asgi.Handler) {
	handlerRegistry = h
}

// Exit codes: 0 clean, 2 bind failure (also used for an invalid --log-level
// or a missing handler), 3 lifespan startup failure; ExitCodeFor maps any
// other error to 1. Python aras's import-failure exit 1 has no Go analogue
// (a missing handler is a caller bug caught at serve time, not an
// import-time failure).
const (
	ExitClean          = 0
	ExitBindFailure    = 2
	ExitStartupFailure = 3
)

type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

// ExitCodeFor maps an error returned by Execute to a process exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitClean
	}
	if ece, ok := err.(*exitCodeError); ok {
		return ece.code
	}
	return 1
}

// Execute runs the root command against os.Args.
func Execute() error {
	return newRootCommand().Execute()
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "aras",
		Short: "aras runs a native HTTP/1.1 and WebSocket server over an ASGI-style Go handler",
	}
	root.AddCommand(newServeCommand())
	return root
}

func newServeCommand() *cobra.Command {
	var (
		host           string
		port           int
		logLevel       string
		noKeepAlive    bool
		maxConcurrency int
		maxSizeKB      int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the server and run the registered handler until terminated",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := asgi.LogLevel(normalizeLogLevel(logLevel))
			if !level.Valid() {
				return &exitCodeError{code: ExitBindFailure, err: fmt.Errorf("invalid --log-level %q", logLevel)}
			}

			if handlerRegistry == nil {
				return &exitCodeError{code: ExitBindFailure, err: fmt.Errorf("no handler registered: call cli.Register before cli.Execute")}
			}

			logger := alog.New(level, os.Stdout)

			addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

			cfg := server.DefaultConfig()
			cfg.Addr = addr
			cfg.Handler = handlerRegistry
			cfg.DisableKeepalive = noKeepAlive
			cfg.Logger = logger
			if maxConcurrency > 0 {
				cfg.MaxConcurrentRequests = int64(maxConcurrency)
			}
			if maxSizeKB > 0 {
				cfg.MaxRequestBodySize = maxSizeKB * 1024
			}

			return runServe(cfg, logger)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "address to bind")
	cmd.Flags().IntVar(&port, "port", 8080, "port to bind")
	cmd.Flags().StringVar(&logLevel, "log-level", "INFO", "log level: DEBUG|INFO|WARN|TRACE|OFF|ERROR")
	cmd.Flags().BoolVar(&noKeepAlive, "no-keep-alive", false, "disable HTTP keep-alive")
	cmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 0, "maximum concurrent handler invocations (0 = unlimited)")
	cmd.Flags().IntVar(&maxSizeKB, "max-size-kb", 1_000_000, "maximum request/message size in KB")

	return cmd
}

func normalizeLogLevel(s string) string {
	switch s {
	case "DEBUG", "debug":
		return "debug"
	case "INFO", "info":
		return "info"
	case "WARN", "warn":
		return "warn"
	case "TRACE", "trace":
		return "trace"
	case "OFF", "off":
		return "off"
	case "ERROR", "error":
		return "error"
	default:
		return s
	}
}

func runServe(cfg server.Config, logger alog.Logger) error {
	srv := server.New(cfg)

	lc := lifespan.New(cfg.Handler, lifespan.DefaultTimeout)
	startupCtx, cancel := context.WithTimeout(context.Background(), lifespan.DefaultTimeout)
	defer cancel()
	if err := lc.Start(startupCtx); err != nil {
		return &exitCodeError{code: ExitStartupFailure, err: fmt.Errorf("lifespan startup failed: %w", err)}
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return &exitCodeError{code: ExitBindFailure, err: fmt.Errorf("bind %s: %w", cfg.Addr, err)}
	}

	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- srv.Serve(ln) }()

	logger.Info("Application startup complete", "addr", cfg.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErrCh:
		if err != nil {
			return err
		}
	case <-sigCh:
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), lifespan.DefaultTimeout)
	defer shutdownCancel()
	if err := lc.Shutdown(shutdownCtx); err != nil {
		logger.Warn("lifespan shutdown failed", "error", err)
	}

	return nil
}
