package http11

import "strings"

// mimeTypes is the static extension table. Anything else is served as
// application/octet-stream.
var mimeTypes = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".xml":  "application/xml",
	".txt":  "text/plain",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".pdf":  "application/pdf",
}

// ContentTypeFor returns the MIME type for a file path based on its
// extension.
func ContentTypeFor(path string) string {
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 {
		return "application/octet-stream"
	}
	if mt, ok := mimeTypes[strings.ToLower(path[dot:])]; ok {
		return mt
	}
	return "application/octet-stream"
}
