package cgi

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/watt-toolkit/filament/pkg/filament/http11"
)

// BuildResponse turns the accumulated child output into a complete HTTP
// response. The CGI header block is split off at the first CRLFCRLF (bare
// LFLF tolerated), Status/Content-Type/Location get their special
// handling, the child's Content-Length is discarded in favor of the real
// body length, and every other header passes through verbatim.
//
// Output with no header terminator at all is not a CGI response; the
// caller gets a 500.
func BuildResponse(output []byte) []byte {
	headerEnd := bytes.Index(output, []byte("\r\n\r\n"))
	sepLen := 4
	if headerEnd < 0 {
		headerEnd = bytes.Index(output, []byte("\n\n"))
		sepLen = 2
	}
	if headerEnd < 0 {
		return http11.Text(500, "text/html",
			[]byte("<html><body><h1>500 Internal Server Error</h1><p>CGI error: invalid output format.</p></body></html>"))
	}

	head := output[:headerEnd]
	body := output[headerEnd+sepLen:]

	status := 200
	reason := "OK"
	contentType := "text/html"
	location := ""
	var passthrough [][2]string

	for _, line := range splitHeaderLines(head) {
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		name := line[:colon]
		value := strings.TrimSpace(line[colon+1:])
		switch strings.ToLower(name) {
		case "status":
			if space := strings.IndexByte(value, ' '); space >= 0 {
				if code, err := strconv.Atoi(value[:space]); err == nil {
					status = code
					reason = value[space+1:]
				}
			} else if code, err := strconv.Atoi(value); err == nil {
				status = code
				reason = http11.StatusText(code)
			}
		case "content-type":
			contentType = value
		case "location":
			location = value
			if status == 200 {
				status = 302
				reason = "Found"
			}
		case "content-length":
			// recomputed from the actual body
		default:
			passthrough = append(passthrough, [2]string{name, value})
		}
	}

	rb := http11.NewResponse(status).SetReason(reason)
	if location != "" {
		rb.AddHeader("Location", location)
	}
	for _, h := range passthrough {
		rb.AddHeader(h[0], h[1])
	}
	return rb.SetBody(contentType, body).Bytes()
}

// splitHeaderLines cuts a CGI header block into lines, accepting both CRLF
// and bare LF endings (scripts on every platform write these).
func splitHeaderLines(head []byte) []string {
	var lines []string
	for _, raw := range bytes.Split(head, []byte("\n")) {
		line := strings.TrimSuffix(string(raw), "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
