// Package server is the connection engine: per-client state machines, the
// descriptor registry, the router with its method handlers, and the epoll
// event loop that drives them all on one goroutine.
package server

import (
	"github.com/watt-toolkit/filament/pkg/filament/cgi"
)

// State is the per-connection position in the request/response cycle.
type State int

const (
	// ReadingRequest: the client descriptor is armed readable and bytes
	// are being appended to the request buffer.
	ReadingRequest State = iota

	// CgiRunning: neither client direction is armed; only the CGI pipes
	// are registered with the poller.
	CgiRunning

	// SendingResponse: the client descriptor is armed writable and the
	// response buffer is draining.
	SendingResponse
)

// Conn is the state of one client connection. It is created on accept,
// mutated only by the event loop, and destroyed on keep-alive decline,
// peer hangup, I/O error, or a terminal response.
type Conn struct {
	FD          int
	ServerIndex int
	State       State

	// RequestBuf accumulates raw request bytes, headers included.
	RequestBuf []byte

	// Body accounting, valid once HeadersComplete is set. HeaderEnd
	// points one past the CRLFCRLF.
	HeadersComplete bool
	HeaderEnd       int
	BodyReceived    int64

	// MaxBodySize is the effective cap chosen when the headers
	// completed (location override or server default); 0 = unlimited.
	MaxBodySize int64
	capChosen   bool

	// ResponseBuf and BytesSent drive SendingResponse.
	// BytesSent <= len(ResponseBuf) always.
	ResponseBuf []byte
	BytesSent   int

	// ForceClose marks a response produced by a framing-level failure
	// (early 413, 411, CGI abort): the byte stream past it cannot be
	// trusted as a request boundary, so keep-alive is declined.
	ForceClose bool

	// CGI is non-nil exactly while State == CgiRunning.
	CGI *cgi.Process
}

// Head returns the header block, request line included, without the
// terminating CRLFCRLF. Only valid once HeadersComplete.
func (c *Conn) Head() []byte {
	return c.RequestBuf[:c.HeaderEnd-4]
}

// Body returns the bytes received past the header terminator.
func (c *Conn) Body() []byte {
	return c.RequestBuf[c.HeaderEnd:]
}

// SetResponse stores a fully built response for sending.
func (c *Conn) SetResponse(b []byte) {
	c.ResponseBuf = b
	c.BytesSent = 0
}

// ResponseComplete reports whether the whole response has been sent.
func (c *Conn) ResponseComplete() bool {
	return c.BytesSent >= len(c.ResponseBuf)
}

// Reset returns the connection to ReadingRequest for the next keep-alive
// request, dropping all per-request state.
func (c *Conn) Reset() {
	c.State = ReadingRequest
	c.RequestBuf = nil
	c.ResponseBuf = nil
	c.BytesSent = 0
	c.ForceClose = false
	c.HeadersComplete = false
	c.HeaderEnd = 0
	c.BodyReceived = 0
	c.MaxBodySize = 0
	c.capChosen = false
	c.CGI = nil
}
