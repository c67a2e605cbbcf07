package server

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/joepatol/aras/pkg/asgi"
	"github.com/joepatol/aras/pkg/channel"
	"github.com/joepatol/aras/pkg/executor"
	"github.com/joepatol/aras/pkg/httpcodec"
)

var serverHeaderName = []byte("Server")
var serverHeaderValue = []byte("aras")
var dateHeaderName = []byte("Date")
var keepAliveHeaderName = []byte("Keep-Alive")
var keepAliveHeaderValue = []byte("timeout=5")
var connectionHeaderName = []byte("Connection")

// httpDateFormat is RFC 7231's preferred Date header format (IMF-fixdate).
const httpDateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// requestBodyChunk bounds how many bytes of a request body are read into a
// single http.request message, so a large upload is delivered to the
// Handler incrementally instead of buffered whole in memory.
const requestBodyChunk = 64 * 1024

// bridge wires one HTTP request through the asgi.Handler contract: it reads
// the request body into http.request messages on an Inbound queue, submits
// the Handler to the Executor, and drains http.response.start/body messages
// from an Outbound rendezvous into the httpcodec.ResponseWriter.
//
// It returns an error for conditions the connection loop must treat as
// fatal (the connection is closed on error). A Handler error raised before
// http.response.start is answered with a 500 response and is also returned,
// so the connection closes after the 500.
type bridge struct {
	handler  asgi.Handler
	exec     *executor.Executor
	connID   string
	connState map[string]any
}

func newBridge(handler asgi.Handler, exec *executor.Executor, connID string, connState map[string]any) *bridge {
	return &bridge{handler: handler, exec: exec, connID: connID, connState: connState}
}

// serveHTTP adapts one parsed request/response pair into an asgi.Handler
// invocation, called from pkg/server/connection.go's serve loop.
func (b *bridge) serveHTTP(req *httpcodec.Request, rw *httpcodec.ResponseWriter) error {
	scope := buildHTTPScope(req, b.connID, b.connState, nil, nil)

	in := channel.NewInbound(4)
	out := channel.NewOutbound()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	submitErr := b.exec.Submit(ctx, func(taskCtx context.Context) {
		err := b.handler(taskCtx, scope, receiveFunc(in), sendFunc(out))
		in.Close(nil)
		out.Close(err)
		done <- err
	})
	if submitErr != nil {
		return writeAdmissionRejection(rw, submitErr)
	}

	// Feed the body in (this may itself race with the handler already
	// replying before the body is fully read, matching the ASGI contract
	// where an application is free to ignore the body).
	go b.feedBody(ctx, req, in)

	if err := b.drainResponse(ctx, out, rw); err != nil {
		cancel()
		<-done
		return err
	}

	return <-done
}

func (b *bridge) feedBody(ctx context.Context, req *httpcodec.Request, in *channel.Inbound) {
	if req.Body == nil {
		in.Push(ctx, asgi.Message{Type: asgi.MessageHTTPRequest, MoreBody: false})
		return
	}
	scratch := bytebufferpool.Get()
	defer bytebufferpool.Put(scratch)
	if cap(scratch.B) < requestBodyChunk {
		scratch.B = make([]byte, requestBodyChunk)
	} else {
		scratch.B = scratch.B[:requestBodyChunk]
	}
	buf := scratch.B
	for {
		n, err := req.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			more := err == nil
			if pushErr := in.Push(ctx, asgi.Message{Type: asgi.MessageHTTPRequest, Body: chunk, MoreBody: more}); pushErr != nil {
				return
			}
			if !more {
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				in.Push(ctx, asgi.Message{Type: asgi.MessageHTTPDisconnect})
			} else {
				in.Push(ctx, asgi.Message{Type: asgi.MessageHTTPRequest, MoreBody: false})
			}
			return
		}
	}
}

func (b *bridge) drainResponse(ctx context.Context, out *channel.Outbound, rw *httpcodec.ResponseWriter) error {
	msg, err := out.Recv(ctx)
	if err != nil {
		return writeHandlerFailure(rw, err)
	}
	if msg.Type != asgi.MessageHTTPResponseStart {
		return writeHandlerFailure(rw, errors.New("server: application did not send http.response.start first"))
	}
	rw.Header().Set(serverHeaderName, serverHeaderValue)
	rw.Header().Set(dateHeaderName, []byte(time.Now().UTC().Format(httpDateFormat)))
	for _, h := range msg.Headers {
		rw.Header().Set(h.Name, h.Value)
	}
	if string(rw.Header().Get(connectionHeaderName)) != "close" {
		rw.Header().Set(keepAliveHeaderName, keepAliveHeaderValue)
	}
	rw.WriteHeader(msg.Status)

	for {
		bodyMsg, err := out.Recv(ctx)
		if err != nil {
			return err
		}
		if bodyMsg.Type != asgi.MessageHTTPResponseBody {
			return nil
		}
		if len(bodyMsg.Body) > 0 {
			if _, err := rw.Write(bodyMsg.Body); err != nil {
				return err
			}
		}
		if !bodyMsg.MoreBody {
			return nil
		}
	}
}

// writeAdmissionRejection responds 503 when the Executor's admission gate
// rejects the request outright (server at capacity).
func writeAdmissionRejection(rw *httpcodec.ResponseWriter, err error) error {
	if rw.HeaderWritten() {
		return err
	}
	_ = rw.WriteError(503, "server at capacity")
	return nil
}

// writeHandlerFailure responds 500 when the Handler errors or disconnects
// before emitting a well-formed http.response.start, unless a response was
// already partially written (in which case the connection must close).
func writeHandlerFailure(rw *httpcodec.ResponseWriter, err error) error {
	if rw.HeaderWritten() {
		return err
	}
	_ = rw.WriteError(500, "Internal Server Error")
	return nil
}

func receiveFunc(in *channel.Inbound) asgi.Receive {
	return func() (asgi.Message, error) {
		return in.Pop(context.Background())
	}
}

func sendFunc(out *channel.Outbound) asgi.Send {
	return func(msg asgi.Message) error {
		return out.Send(context.Background(), msg)
	}
}
