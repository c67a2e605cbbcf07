package httpcodec

import "errors"

// Parser errors - Pre-allocated for zero runtime allocation
var (
	// ErrInvalidRequestLine indicates the request line is malformed
	// Request line format: METHOD PATH PROTOCOL\r\n
	ErrInvalidRequestLine = errors.New("httpcodec: invalid request line")

	// ErrInvalidMethod indicates an unsupported or malformed HTTP method
	ErrInvalidMethod = errors.New("httpcodec: invalid HTTP method")

	// ErrInvalidPath indicates the request path is malformed
	ErrInvalidPath = errors.New("httpcodec: invalid request path")

	// ErrInvalidProtocol indicates an unsupported protocol version
	// Only HTTP/1.1 is supported by this engine
	ErrInvalidProtocol = errors.New("httpcodec: invalid or unsupported protocol version")

	// ErrInvalidHeader indicates a malformed header
	// Headers must be in format: Name: Value\r\n
	ErrInvalidHeader = errors.New("httpcodec: invalid HTTP header")

	// ErrHeaderTooLarge indicates a header name or value exceeds size limits
	// Limits: name ≤64 bytes, value ≤8192 bytes
	ErrHeaderTooLarge = errors.New("httpcodec: header name or value too large")

	// ErrTooManyHeaders indicates more than 32 headers without overflow buffer
	ErrTooManyHeaders = errors.New("httpcodec: too many headers (>32 without overflow)")

	// ErrRequestLineTooLarge indicates the request line exceeds 8KB
	ErrRequestLineTooLarge = errors.New("httpcodec: request line too large")

	// ErrHeadersTooLarge indicates the request line plus headers exceed 16KB
	// (MaxRequestLineSize + MaxHeadersSize)
	ErrHeadersTooLarge = errors.New("httpcodec: headers too large")

	// ErrChunkedEncoding indicates an error parsing chunked transfer encoding
	ErrChunkedEncoding = errors.New("httpcodec: chunked encoding error")

	// ErrInvalidContentLength indicates Content-Length header is malformed
	ErrInvalidContentLength = errors.New("httpcodec: invalid Content-Length")

	// P0 FIX #1: HTTP Request Smuggling - CL.TE Attack Protection
	// ErrContentLengthWithTransferEncoding indicates a request has both headers
	// RFC 7230 §3.3.3: This MUST be rejected to prevent smuggling attacks
	ErrContentLengthWithTransferEncoding = errors.New("httpcodec: request has both Content-Length and Transfer-Encoding (RFC 7230 violation)")

	// P0 FIX #2: HTTP Request Smuggling - Duplicate Content-Length Protection
	// ErrDuplicateContentLength indicates multiple Content-Length headers with different values
	// RFC 7230 §3.3.3: This MUST be rejected to prevent smuggling attacks
	ErrDuplicateContentLength = errors.New("httpcodec: duplicate Content-Length headers with different values (RFC 7230 violation)")

	// P0 FIX #5: Excessive URI Length DoS Protection
	// ErrURITooLong indicates the URI exceeds the maximum allowed length
	// This prevents memory exhaustion attacks
	ErrURITooLong = errors.New("httpcodec: URI too long")

	// ErrUnexpectedEOF indicates unexpected end of input
	ErrUnexpectedEOF = errors.New("httpcodec: unexpected EOF")

	// ErrBufferTooSmall indicates the provided buffer is too small
	ErrBufferTooSmall = errors.New("httpcodec: buffer too small")
)

// Connection errors
var (
	// ErrConnectionClosed indicates the connection has been closed
	ErrConnectionClosed = errors.New("httpcodec: connection closed")

	// ErrTimeout indicates a read or write timeout occurred
	ErrTimeout = errors.New("httpcodec: timeout")

	// ErrMaxRequestsExceeded indicates max requests per connection exceeded
	ErrMaxRequestsExceeded = errors.New("httpcodec: max requests per connection exceeded")
)

// Response errors
var (
	// ErrHeadersAlreadyWritten indicates WriteHeader was called multiple times
	ErrHeadersAlreadyWritten = errors.New("httpcodec: headers already written")

	// ErrInvalidStatusCode indicates an invalid HTTP status code
	ErrInvalidStatusCode = errors.New("httpcodec: invalid status code")
)
