package server

import (
	"io"
	"net"
	"time"

	"github.com/joepatol/aras/pkg/httpcodec"
)

// handleConnection owns one accepted TCP connection end to end. Unlike the
// pure-HTTP zero-allocation loop it is adapted from, it must look at each
// request before committing to a transport: a WebSocket upgrade hands the
// raw connection off to wsproto and never returns to the HTTP loop, while
// ordinary requests keep cycling through the pooled parser/response-writer
// pair for as long as keep-alive allows.
func (s *Server) handleConnection(netConn net.Conn) {
	defer s.wg.Done()
	defer netConn.Close()

	if s.connSem != nil {
		defer func() { <-s.connSem }()
	}

	s.trackConnection(netConn)
	defer s.untrackConnection(netConn)

	connID := newConnID()
	connState := map[string]any{}
	log := s.config.Logger.With("conn_id", connID)

	reader := httpcodec.GetBufioReader(netConn)
	writer := httpcodec.GetBufioWriter(netConn)
	parser := httpcodec.GetParser()
	defer func() {
		httpcodec.PutBufioReader(reader)
		httpcodec.PutBufioWriter(writer)
		httpcodec.PutParser(parser)
	}()

	maxRequests := s.config.MaxKeepAliveRequests
	if s.config.DisableKeepalive {
		maxRequests = 1
	}

	b := newBridge(s.config.Handler, s.exec, connID, connState)

	requestNum := 0
	for {
		if s.config.IdleTimeout > 0 {
			netConn.SetReadDeadline(time.Now().Add(s.config.IdleTimeout))
		}

		req, err := parser.Parse(reader)
		if err != nil {
			if err != io.EOF && err != httpcodec.ErrUnexpectedEOF {
				s.stats.RequestErrors.Add(1)
				log.Debug("request parse failed", "error", err)
			}
			return
		}
		requestNum++
		s.stats.TotalRequests.Add(1)
		if s.config.Metrics != nil {
			s.config.Metrics.TotalRequests.Inc()
		}

		if isWebSocketUpgrade(req) {
			s.handleWebSocketUpgrade(netConn, writer, req, connID, connState)
			httpcodec.PutRequest(req)
			return
		}

		rw := httpcodec.GetResponseWriter(writer)

		willClose := maxRequests > 0 && requestNum >= maxRequests
		if willClose || s.config.DisableKeepalive {
			rw.Header().Set([]byte("Connection"), []byte("close"))
		}

		handlerErr := b.serveHTTP(req, rw)
		flushErr := rw.Flush()

		shouldClose := handlerErr != nil || flushErr != nil || willClose || req.Close || connectionHeaderRequestsClose(rw)

		httpcodec.PutResponseWriter(rw)
		httpcodec.PutRequest(req)

		if handlerErr != nil {
			s.stats.RequestErrors.Add(1)
			if s.config.Metrics != nil {
				s.config.Metrics.RequestErrors.Inc()
			}
		}
		if shouldClose || flushErr != nil {
			return
		}
	}
}

func isWebSocketUpgrade(req *httpcodec.Request) bool {
	if !req.IsGET() {
		return false
	}
	conn := req.GetHeaderString("Connection")
	upgrade := req.GetHeaderString("Upgrade")
	return containsToken(conn, "upgrade") && containsToken(upgrade, "websocket")
}

func containsToken(v, token string) bool {
	if len(v) == 0 {
		return false
	}
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			part := v[start:i]
			if equalFoldTrim(part, token) {
				return true
			}
			start = i + 1
		}
	}
	return false
}

func equalFoldTrim(s, token string) bool {
	i, j := 0, len(s)
	for i < j && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	for j > i && (s[j-1] == ' ' || s[j-1] == '\t') {
		j--
	}
	s = s[i:j]
	if len(s) != len(token) {
		return false
	}
	for k := 0; k < len(s); k++ {
		c := s[k]
		if c >= 'A' && c <= 'Z' {
			c += 32
		}
		if c != token[k] {
			return false
		}
	}
	return true
}

func connectionHeaderRequestsClose(rw *httpcodec.ResponseWriter) bool {
	return string(rw.Header().Get([]byte("Connection"))) == "close"
}

