package server

import (
	"net"
	"strconv"

	"github.com/joepatol/aras/pkg/asgi"
	"github.com/joepatol/aras/pkg/httpcodec"
)

// buildHTTPScope translates a parsed httpcodec.Request into an asgi.Scope.
// Headers are copied in the order VisitAll walks them: inline headers in
// wire order, then any held in the httpcodec.Header overflow map (past 32
// headers, or values over 128 bytes) in map iteration order, where a repeated
// name keeps only its last value. Names are lowercased per the ASGI header
// convention.
func buildHTTPScope(req *httpcodec.Request, connID string, state map[string]any, localAddr, remoteAddr net.Addr) *asgi.Scope {
	headers := make([]asgi.Header, 0, req.Header.Len())
	req.Header.VisitAll(func(name, value []byte) bool {
		lower := make([]byte, len(name))
		for i, b := range name {
			if b >= 'A' && b <= 'Z' {
				b += 32
			}
			lower[i] = b
		}
		nameCopy := lower
		valueCopy := make([]byte, len(value))
		copy(valueCopy, value)
		headers = append(headers, asgi.Header{Name: nameCopy, Value: valueCopy})
		return true
	})

	path := req.Path()
	rawPath := make([]byte, len(req.PathBytes()))
	copy(rawPath, req.PathBytes())
	query := make([]byte, len(req.QueryBytes()))
	copy(query, req.QueryBytes())

	return &asgi.Scope{
		Type:   asgi.HTTPScope,
		ConnID: connID,
		State:  state,
		HTTP: asgi.HTTPScopeFields{
			Method:      req.Method(),
			RawPath:     rawPath,
			Path:        path,
			QueryString: query,
			Headers:     headers,
			Client:      addrOf(remoteAddr),
			Server:      addrOf(localAddr),
			HTTPVersion: "1.1",
		},
	}
}

// buildWebSocketScope is the WebSocket analogue of buildHTTPScope, built
// from the raw HTTP upgrade request's path/query/headers before the
// handshake completes.
func buildWebSocketScope(path string, rawPath, query []byte, headers []asgi.Header, connID string, state map[string]any, localAddr, remoteAddr net.Addr, subprotocols []string) *asgi.Scope {
	return &asgi.Scope{
		Type:   asgi.WebSocketScope,
		ConnID: connID,
		State:  state,
		WebSocket: asgi.WebSocketScopeFields{
			RawPath:      rawPath,
			Path:         path,
			QueryString:  query,
			Headers:      headers,
			Client:       addrOf(remoteAddr),
			Server:       addrOf(localAddr),
			Subprotocols: subprotocols,
		},
	}
}

func addrOf(a net.Addr) asgi.Address {
	if a == nil {
		return asgi.Address{}
	}
	host, portStr, err := net.SplitHostPort(a.String())
	if err != nil {
		return asgi.Address{Host: a.String()}
	}
	port, _ := strconv.Atoi(portStr)
	return asgi.Address{Host: host, Port: port}
}
