package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/watt-toolkit/filament/pkg/filament/config"
	"github.com/watt-toolkit/filament/pkg/filament/http11"
)

// defaultErrorDetail supplies the one-line body text for codes whose
// default page says more than the reason phrase.
var defaultErrorDetail = map[int]string{
	400: "The request could not be understood.",
	403: "Access to this resource is forbidden.",
	404: "The requested resource was not found.",
	405: "The method is not allowed for this resource.",
	411: "A Content-Length header is required.",
	413: "The request body exceeds the configured limit.",
	500: "The server encountered an internal error.",
	501: "The request method is not implemented.",
	504: "The gateway did not respond in time.",
}

// errorBody returns the HTML body for an error response: the server's
// configured error_page if one loads, the built-in page otherwise. The
// configured path is resolved relative to the server root.
func errorBody(code int, srv *config.Server) []byte {
	if srv != nil {
		if page, ok := srv.ErrorPages[code]; ok {
			path := filepath.Join(srv.Root, page)
			if data, err := os.ReadFile(path); err == nil {
				return data
			}
		}
	}
	detail := defaultErrorDetail[code]
	body := fmt.Sprintf("<html><body><h1>%d %s</h1><p>%s</p></body></html>",
		code, http11.StatusText(code), detail)
	return []byte(body)
}

// errorResponse builds the full response for an error status.
func errorResponse(code int, srv *config.Server) []byte {
	return http11.Text(code, "text/html", errorBody(code, srv))
}

// headError builds the bodiless variant for HEAD requests: the headers a
// GET would have produced, Content-Length included, with the body omitted.
func headError(code int, srv *config.Server) []byte {
	return http11.Head(code, "text/html", int64(len(errorBody(code, srv))))
}
