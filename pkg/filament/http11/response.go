package http11

import (
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// ResponseBuilder assembles a full HTTP/1.1 response into one byte slice,
// ready to be handed to the connection's send buffer. Scratch space comes
// from bytebufferpool so that request bursts do not churn the heap.
//
// The builder always emits Content-Length (0 included) except for 204,
// which has no body by definition. Chunked responses are never produced.
type ResponseBuilder struct {
	status  int
	reason  string
	headers []string // "Name: value" pairs, emitted in insertion order
	body    []byte
}

// NewResponse starts a response with the given status code and its standard
// reason phrase.
func NewResponse(status int) *ResponseBuilder {
	return &ResponseBuilder{status: status, reason: StatusText(status)}
}

// SetReason overrides the reason phrase (a CGI Status header may carry a
// custom one).
func (rb *ResponseBuilder) SetReason(reason string) *ResponseBuilder {
	rb.reason = reason
	return rb
}

// AddHeader appends a header field. Content-Length is managed by the
// builder and must not be added here.
func (rb *ResponseBuilder) AddHeader(name, value string) *ResponseBuilder {
	rb.headers = append(rb.headers, name+": "+value)
	return rb
}

// SetBody attaches the response body and its content type.
func (rb *ResponseBuilder) SetBody(contentType string, body []byte) *ResponseBuilder {
	rb.headers = append(rb.headers, "Content-Type: "+contentType)
	rb.body = body
	return rb
}

// Bytes serializes the response. The returned slice is freshly allocated
// and owned by the caller.
func (rb *ResponseBuilder) Bytes() []byte {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.WriteString("HTTP/1.1 ")
	buf.WriteString(strconv.Itoa(rb.status))
	buf.WriteByte(' ')
	buf.WriteString(rb.reason)
	buf.WriteString("\r\n")
	for _, h := range rb.headers {
		buf.WriteString(h)
		buf.WriteString("\r\n")
	}
	if rb.status != 204 {
		buf.WriteString("Content-Length: ")
		buf.WriteString(strconv.Itoa(len(rb.body)))
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	buf.Write(rb.body)

	out := make([]byte, buf.Len())
	copy(out, buf.B)
	return out
}

// Text builds a complete response in one call: status line, content type,
// body, Content-Length.
func Text(status int, contentType string, body []byte) []byte {
	return NewResponse(status).SetBody(contentType, body).Bytes()
}

// Redirect builds a 301/302 response pointing at target, with a small HTML
// body naming the new location.
func Redirect(status int, target string) []byte {
	body := "<html><body><h1>" + strconv.Itoa(status) + " " + StatusText(status) +
		"</h1><p>The document has moved <a href=\"" + target + "\">here</a>.</p></body></html>"
	return NewResponse(status).
		AddHeader("Location", target).
		SetBody("text/html", []byte(body)).
		Bytes()
}

// Head builds a bodiless response that still advertises the length and type
// of the entity a GET would have returned.
func Head(status int, contentType string, contentLength int64) []byte {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.WriteString("HTTP/1.1 ")
	buf.WriteString(strconv.Itoa(status))
	buf.WriteByte(' ')
	buf.WriteString(StatusText(status))
	buf.WriteString("\r\nContent-Type: ")
	buf.WriteString(contentType)
	buf.WriteString("\r\nContent-Length: ")
	buf.WriteString(strconv.FormatInt(contentLength, 10))
	buf.WriteString("\r\n\r\n")

	out := make([]byte, buf.Len())
	copy(out, buf.B)
	return out
}

// NoContent builds the 204 response. No Content-Length, no body.
func NoContent() []byte {
	return []byte("HTTP/1.1 204 No Content\r\n\r\n")
}
