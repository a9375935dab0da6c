package http11

import (
	"bytes"
	"strconv"
	"strings"
)

var crlfcrlf = []byte("\r\n\r\n")

// HeaderEnd searches buf for the CRLFCRLF header terminator and returns the
// offset one past it. searchFrom lets a caller that appends incrementally
// resume the scan near the old tail; the scan backs up three bytes so a
// terminator straddling the append boundary is still found.
func HeaderEnd(buf []byte, searchFrom int) (int, bool) {
	start := searchFrom - 3
	if start < 0 {
		start = 0
	}
	idx := bytes.Index(buf[start:], crlfcrlf)
	if idx < 0 {
		return 0, false
	}
	return start + idx + 4, true
}

// ParseRequestLine splits the first line of a header block into its method,
// request-target and protocol version tokens. ok is false when fewer than
// three tokens are present.
func ParseRequestLine(head []byte) (method, target, version string, ok bool) {
	lineEnd := bytes.IndexByte(head, '\r')
	if lineEnd < 0 {
		lineEnd = len(head)
	}
	fields := strings.Fields(string(head[:lineEnd]))
	if len(fields) < 3 {
		return "", "", "", false
	}
	return fields[0], fields[1], fields[2], true
}

// Method returns the first token of the request line, or "" when the buffer
// does not hold one yet.
func Method(buf []byte) string {
	end := len(buf)
	for i := 0; i < end; i++ {
		c := buf[i]
		if c == ' ' || c == '\r' || c == '\n' {
			return string(buf[:i])
		}
	}
	return ""
}

// SplitTarget separates a request-target into its path and query portions.
// The '?' itself belongs to neither.
func SplitTarget(target string) (path, query string) {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i], target[i+1:]
	}
	return target, ""
}

// HeaderValue scans a header block for the named field, case-insensitively,
// and returns its value with surrounding whitespace trimmed. The value's own
// case is preserved. The request line is skipped.
func HeaderValue(head []byte, name string) (string, bool) {
	for _, line := range headerLines(head) {
		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		if equalFold(line[:colon], name) {
			return strings.Trim(string(line[colon+1:]), " \t"), true
		}
	}
	return "", false
}

// HasHost reports whether a Host header is present. Only consulted for
// HTTP/1.1 requests, where the field is mandatory.
func HasHost(head []byte) bool {
	_, ok := HeaderValue(head, "Host")
	return ok
}

// ContentLength returns the declared Content-Length. ok is false when the
// header is absent or unparseable.
func ContentLength(head []byte) (int64, bool) {
	v, ok := HeaderValue(head, "Content-Length")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IsChunked reports whether Transfer-Encoding names the chunked coding.
func IsChunked(head []byte) bool {
	v, ok := HeaderValue(head, "Transfer-Encoding")
	if !ok {
		return false
	}
	for _, tok := range strings.Split(v, ",") {
		if strings.EqualFold(strings.TrimSpace(tok), "chunked") {
			return true
		}
	}
	return false
}

// WantsKeepAlive applies the HTTP/1.x persistence rules: 1.1 keeps the
// connection unless "Connection: close" is sent, 1.0 closes it unless
// "Connection: keep-alive" is sent, and any other version closes.
func WantsKeepAlive(version string, head []byte) bool {
	conn, _ := HeaderValue(head, "Connection")
	switch version {
	case "HTTP/1.1":
		return !strings.EqualFold(conn, "close")
	case "HTTP/1.0":
		return strings.EqualFold(conn, "keep-alive")
	}
	return false
}

// EachHeader calls fn for every "Name: value" field in the header block,
// request line excluded, with the name's case preserved.
func EachHeader(head []byte, fn func(name, value string)) {
	for _, line := range headerLines(head) {
		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		name := string(line[:colon])
		value := strings.Trim(string(line[colon+1:]), " \t")
		fn(name, value)
	}
}

// headerLines returns the field lines of a header block, tolerating bare-LF
// line endings the way lenient parsers in the wild do.
func headerLines(head []byte) [][]byte {
	var lines [][]byte
	first := true
	for _, line := range bytes.Split(head, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if first {
			first = false
			continue
		}
		if len(line) == 0 {
			break
		}
		lines = append(lines, line)
	}
	return lines
}

// equalFold compares an ASCII byte slice against a string ignoring case.
func equalFold(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := 0; i < len(b); i++ {
		cb, cs := b[i], s[i]
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if 'A' <= cs && cs <= 'Z' {
			cs += 'a' - 'A'
		}
		if cb != cs {
			return false
		}
	}
	return true
}
