package asgi

import "context"

// MessageType names every event that can cross the receive/send boundary.
type MessageType string

const (
	// Inbound (receive), HTTP.
	MessageHTTPRequest    MessageType = "http.request"
	MessageHTTPDisconnect MessageType = "http.disconnect"

	// Outbound (send), HTTP.
	MessageHTTPResponseStart MessageType = "http.response.start"
	MessageHTTPResponseBody  MessageType = "http.response.body"

	// Inbound, WebSocket.
	MessageWebSocketConnect    MessageType = "websocket.connect"
	MessageWebSocketReceive    MessageType = "websocket.receive"
	MessageWebSocketDisconnect MessageType = "websocket.disconnect"

	// Outbound, WebSocket.
	MessageWebSocketAccept MessageType = "websocket.accept"
	MessageWebSocketSend   MessageType = "websocket.send"
	MessageWebSocketClose  MessageType = "websocket.close"

	// Inbound, lifespan.
	MessageLifespanStartup  MessageType = "lifespan.startup"
	MessageLifespanShutdown MessageType = "lifespan.shutdown"

	// Outbound, lifespan.
	MessageLifespanStartupComplete  MessageType = "lifespan.startup.complete"
	MessageLifespanStartupFailed    MessageType = "lifespan.startup.failed"
	MessageLifespanShutdownComplete MessageType = "lifespan.shutdown.complete"
	MessageLifespanShutdownFailed   MessageType = "lifespan.shutdown.failed"
)

// Message is a tagged union of every event that can be exchanged between a
// transport and a Handler. Only the fields relevant to Type are populated;
// the zero value of the rest is ignored by both sides.
type Message struct {
	Type MessageType

	// http.request / http.response.body
	Body    []byte
	MoreBody bool

	// http.response.start
	Status  int
	Headers []Header

	// websocket.receive
	Text       string
	Binary     []byte
	IsBinary   bool

	// websocket.close / websocket.disconnect
	Code   int
	Reason string

	// websocket.accept
	Subprotocol string

	// lifespan.*.failed
	Message string
}

// Receive is called by a Handler to obtain the next inbound Message. It
// blocks until a message is available, the connection is cancelled, or ctx
// is done. Implementations must be safe to call repeatedly in sequence
// (never concurrently) for the lifetime of one Handler invocation.
type Receive func() (Message, error)

// Send is called by a Handler to emit an outbound Message. It blocks if the
// outbound channel is full (backpressure) until the transport drains it, the
// connection is cancelled, or the deadline expires.
type Send func(Message) error

// Handler is the application entry point, analogous to a Python ASGI
// application callable. It is invoked once per HTTP request, once per
// WebSocket connection, and once for the lifespan scope (for the whole
// process lifetime). An error return aborts the scope; the transport maps
// it to a disposition (5xx, abnormal close, or startup failure) per its own
// error-handling rules.
type Handler func(ctx context.Context, scope *Scope, receive Receive, send Send) error
