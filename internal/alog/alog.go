// Package alog adapts github.com/hashicorp/go-hclog to the server's
// asgi.LogLevel vocabulary, and standardizes the structured fields attached
// to connection- and request-scoped log lines.
package alog

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/joepatol/aras/pkg/asgi"
)

// Logger is an alias for the full hclog.Logger interface, so a test fake
// has to implement all of it.
type Logger = hclog.Logger

// New builds a root Logger writing to w (os.Stdout if nil) at the given
// level. LogOff maps to hclog.Off, which discards everything.
func New(level asgi.LogLevel, w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "aras",
		Level:      toHclog(level),
		Output:     w,
		JSONFormat: false,
	})
}

func toHclog(level asgi.LogLevel) hclog.Level {
	switch level {
	case asgi.LogTrace:
		return hclog.Trace
	case asgi.LogDebug:
		return hclog.Debug
	case asgi.LogInfo:
		return hclog.Info
	case asgi.LogWarn:
		return hclog.Warn
	case asgi.LogError:
		return hclog.Error
	case asgi.LogOff:
		return hclog.Off
	default:
		return hclog.Info
	}
}

// ForConn returns a child logger with a conn_id field attached, used for
// every log line emitted while serving one connection.
func ForConn(l Logger, connID string) Logger {
	return l.With("conn_id", connID)
}

// ForRequest returns a child logger with conn_id and request_num fields,
// used for log lines scoped to one request on a keep-alive connection.
func ForRequest(l Logger, connID string, requestNum int) Logger {
	return l.With("conn_id", connID, "request_num", requestNum)
}
