package server

import (
	"bufio"
	"context"
	"net"

	"github.com/joepatol/aras/pkg/asgi"
	"github.com/joepatol/aras/pkg/channel"
	"github.com/joepatol/aras/pkg/httpcodec"
	"github.com/joepatol/aras/pkg/wsproto"
)

// handleWebSocketUpgrade performs the RFC 6455 handshake and, on success,
// owns the connection for its entire WebSocket lifetime: it builds the
// websocket scope, submits the Handler to the Executor, and bridges frames
// read from the wire into websocket.receive messages while draining
// websocket.accept/send/close from the outbound channel to write frames.
func (s *Server) handleWebSocketUpgrade(netConn net.Conn, writer *bufio.Writer, req *httpcodec.Request, connID string, connState map[string]any) {
	headerFn := func(name string) string { return req.GetHeaderString(name) }

	wsConn, err := wsproto.UpgradeConn(netConn, writer, headerFn, nil, s.config.ReadBufferSize, s.config.WriteBufferSize)
	if err != nil {
		return
	}
	defer wsConn.Close()

	headers := make([]asgi.Header, 0, req.Header.Len())
	req.Header.VisitAll(func(name, value []byte) bool {
		n := make([]byte, len(name))
		copy(n, name)
		v := make([]byte, len(value))
		copy(v, value)
		headers = append(headers, asgi.Header{Name: lowercaseBytes(n), Value: v})
		return true
	})

	scope := buildWebSocketScope(req.Path(), append([]byte(nil), req.PathBytes()...), append([]byte(nil), req.QueryBytes()...), headers, connID, connState, netConn.LocalAddr(), netConn.RemoteAddr(), nil)

	in := channel.NewInbound(16)
	out := channel.NewOutbound()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	submitErr := s.exec.Submit(ctx, func(taskCtx context.Context) {
		err := s.config.Handler(taskCtx, scope, func() (asgi.Message, error) { return in.Pop(context.Background()) }, func(m asgi.Message) error { return out.Send(context.Background(), m) })
		in.Close(nil)
		out.Close(err)
		done <- err
	})
	if submitErr != nil {
		wsConn.CloseWithCode(wsproto.CloseInternalServerErr, "server at capacity")
		return
	}

	in.Push(ctx, asgi.Message{Type: asgi.MessageWebSocketConnect})

	go pumpInboundFrames(ctx, wsConn, in)

	accepted := false
	for {
		msg, err := out.Recv(ctx)
		if err != nil {
			cancel()
			<-done
			return
		}
		switch msg.Type {
		case asgi.MessageWebSocketAccept:
			accepted = true
		case asgi.MessageWebSocketSend:
			if !accepted {
				cancel()
				<-done
				return
			}
			if msg.IsBinary {
				wsConn.WriteMessage(wsproto.BinaryMessage, msg.Binary)
			} else {
				wsConn.WriteMessage(wsproto.TextMessage, []byte(msg.Text))
			}
		case asgi.MessageWebSocketClose:
			code := uint16(msg.Code)
			if code == 0 {
				code = wsproto.CloseNormalClosure
			}
			wsConn.CloseWithCode(code, msg.Reason)
			cancel()
			<-done
			return
		default:
			cancel()
			<-done
			return
		}
	}
}

// pumpInboundFrames reads WebSocket frames off the wire and translates them
// into websocket.receive / websocket.disconnect messages for the Handler.
func pumpInboundFrames(ctx context.Context, wsConn *wsproto.Conn, in *channel.Inbound) {
	for {
		msgType, data, err := wsConn.ReadMessage()
		if err != nil {
			in.Push(ctx, asgi.Message{Type: asgi.MessageWebSocketDisconnect, Code: int(wsproto.CloseNormalClosure)})
			return
		}
		msg := asgi.Message{Type: asgi.MessageWebSocketReceive}
		if msgType == wsproto.BinaryMessage {
			msg.IsBinary = true
			msg.Binary = data
		} else {
			msg.Text = string(data)
		}
		if in.Push(ctx, msg) != nil {
			return
		}
	}
}

func lowercaseBytes(b []byte) []byte {
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return b
}
