// Package http11 implements the HTTP/1.1 primitives the filament engine is
// built on: raw-buffer request scanning, chunked transfer decoding, response
// assembly, the content-type table and multipart/form-data extraction.
//
// Everything here operates on byte slices owned by the caller. The package
// never reads from or writes to sockets; the server package drives the wire.
package http11

// Methods the engine implements. Anything else is answered with 501.
const (
	MethodGET    = "GET"
	MethodHEAD   = "HEAD"
	MethodPOST   = "POST"
	MethodPUT    = "PUT"
	MethodDELETE = "DELETE"
)

// IsImplemented reports whether method is one the engine implements.
func IsImplemented(method string) bool {
	switch method {
	case MethodGET, MethodHEAD, MethodPOST, MethodPUT, MethodDELETE:
		return true
	}
	return false
}

// statusText maps the status codes the engine emits (plus the usual
// neighbors a CGI script may override to) onto their reason phrases.
var statusText = map[int]string{
	100: "Continue",
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	304: "Not Modified",
	307: "Temporary Redirect",
	308: "Permanent Redirect",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	409: "Conflict",
	410: "Gone",
	411: "Length Required",
	413: "Request Entity Too Large",
	414: "URI Too Long",
	415: "Unsupported Media Type",
	418: "I'm a teapot",
	429: "Too Many Requests",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
	505: "HTTP Version Not Supported",
}

// StatusText returns the standard reason phrase for code, or "Unknown"
// for codes outside the table.
func StatusText(code int) string {
	if text, ok := statusText[code]; ok {
		return text
	}
	return "Unknown"
}
