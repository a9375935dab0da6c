package http11

import (
	"bytes"
	"strings"
)

// ExtractMultipart pulls the first part out of a multipart/form-data body.
// head is the request's header block (the boundary lives in its
// Content-Type field), body the raw request body.
//
// When the request is not multipart, or the part structure cannot be found,
// the raw body is returned unchanged with an empty filename. Otherwise the
// part's content bytes and the filename from its Content-Disposition (if
// any) are returned.
func ExtractMultipart(head, body []byte) (filename string, content []byte) {
	boundary := multipartBoundary(head)
	if boundary == "" {
		return "", body
	}
	delimiter := []byte("--" + boundary)

	partStart := bytes.Index(body, delimiter)
	if partStart < 0 {
		return "", body
	}
	lineEnd := bytes.Index(body[partStart:], []byte("\r\n"))
	if lineEnd < 0 {
		return "", body
	}
	partStart += lineEnd + 2

	headersEnd := bytes.Index(body[partStart:], crlfcrlf)
	if headersEnd < 0 {
		return "", body
	}
	partHeaders := body[partStart : partStart+headersEnd]
	filename = dispositionFilename(partHeaders)

	contentStart := partStart + headersEnd + 4
	contentEnd := bytes.Index(body[contentStart:], delimiter)
	if contentEnd < 0 {
		return "", body
	}
	contentEnd += contentStart
	// the part's trailing CRLF belongs to the framing, not the content
	if contentEnd >= contentStart+2 && body[contentEnd-2] == '\r' && body[contentEnd-1] == '\n' {
		contentEnd -= 2
	}
	return filename, body[contentStart:contentEnd]
}

// multipartBoundary digs the boundary parameter out of the request's
// Content-Type header. Quotes around the token are stripped.
func multipartBoundary(head []byte) string {
	ct, ok := HeaderValue(head, "Content-Type")
	if !ok {
		return ""
	}
	lower := strings.ToLower(ct)
	idx := strings.Index(lower, "boundary=")
	if idx < 0 {
		return ""
	}
	b := ct[idx+len("boundary="):]
	if len(b) > 0 && b[0] == '"' {
		b = b[1:]
	}
	if end := strings.IndexAny(b, "\"; "); end >= 0 {
		b = b[:end]
	}
	return b
}

// dispositionFilename extracts the filename parameter from a part's
// Content-Disposition line, unsanitized.
func dispositionFilename(partHeaders []byte) string {
	idx := bytes.Index(partHeaders, []byte("filename="))
	if idx < 0 {
		return ""
	}
	name := partHeaders[idx+len("filename="):]
	if len(name) > 0 && name[0] == '"' {
		name = name[1:]
	}
	if end := bytes.IndexAny(name, "\"\r\n"); end >= 0 {
		name = name[:end]
	}
	return string(name)
}
