package server

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/watt-toolkit/filament/pkg/filament/http11"
)

// sanitizeFilename reduces an untrusted filename to its base name with only
// [A-Za-z0-9._-] retained and leading dots stripped. An empty result gets a
// synthesized upload_<unix-time>.bin name.
func sanitizeFilename(name string) string {
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') ||
			('0' <= c && c <= '9') || c == '.' || c == '_' || c == '-' {
			b.WriteByte(c)
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		out = fmt.Sprintf("upload_%d.bin", time.Now().Unix())
	}
	return out
}

// fallbackFilename synthesizes a name for a raw-body upload, keeping the
// request path's extension when it has one.
func fallbackFilename(reqPath string) string {
	ext := ".bin"
	base := reqPath
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if dot := strings.LastIndexByte(base, '.'); dot > 0 {
		ext = base[dot:]
	}
	return fmt.Sprintf("upload_%d%s", time.Now().Unix(), ext)
}

// uniqueFilename appends _1.._9999 until the name is free in dir, falling
// back to a timestamp suffix if everything is taken.
func uniqueFilename(dir, name string) string {
	if _, err := os.Stat(dir + "/" + name); err != nil {
		return name
	}
	base, ext := name, ""
	if dot := strings.LastIndexByte(name, '.'); dot > 0 {
		base, ext = name[:dot], name[dot:]
	}
	for n := 1; n < 10000; n++ {
		candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
		if _, err := os.Stat(dir + "/" + candidate); err != nil {
			return candidate
		}
	}
	return fmt.Sprintf("%s_%d%s", base, time.Now().Unix(), ext)
}

// handlePost stores an upload under the location's upload_store. Locations
// without one refuse POST with 403.
func (s *Server) handlePost(c *Conn, reqPath string, body []byte) {
	srv := s.cfg.GetServer(c.ServerIndex)
	loc := srv.FindLocation(reqPath)

	if loc == nil || loc.UploadStore == "" {
		c.SetResponse(errorResponse(403, srv))
		return
	}
	uploadDir := strings.TrimSuffix(loc.UploadStore, "/")
	if info, err := os.Stat(uploadDir); err != nil || !info.IsDir() {
		s.log.WithField("dir", uploadDir).Error("upload directory missing")
		c.SetResponse(errorResponse(404, srv))
		return
	}

	head := c.Head()
	partName, content := http11.ExtractMultipart(head, body)

	filename := sanitizeFilename(partName)
	if partName == "" {
		filename = fallbackFilename(reqPath)
	}
	filename = uniqueFilename(uploadDir, filename)

	target := uploadDir + "/" + filename
	if err := os.WriteFile(target, content, 0o644); err != nil {
		s.log.WithError(err).WithField("path", target).Error("upload write failed")
		c.SetResponse(errorResponse(500, srv))
		return
	}

	s.log.WithFields(logrus.Fields{
		"file": filename,
		"size": len(content),
	}).Info("upload stored")

	respBody := fmt.Sprintf("<html><body><h1>Upload Successful</h1>"+
		"<p>File uploaded: %s</p><p>Size: %d bytes</p></body></html>",
		filename, len(content))
	c.SetResponse(http11.Text(201, "text/html", []byte(respBody)))
}

// handlePut writes the body to the upload_store under the request-target's
// trailing segment: 201 when created, 204 when overwriting.
func (s *Server) handlePut(c *Conn, reqPath string, body []byte) {
	srv := s.cfg.GetServer(c.ServerIndex)
	loc := srv.FindLocation(reqPath)

	if loc == nil || loc.UploadStore == "" {
		c.SetResponse(errorResponse(403, srv))
		return
	}

	filename := ""
	if i := strings.LastIndexByte(reqPath, '/'); i >= 0 && i < len(reqPath)-1 {
		filename = sanitizeFilename(reqPath[i+1:])
	}
	if filename == "" {
		c.SetResponse(errorResponse(400, srv))
		return
	}

	target := strings.TrimSuffix(loc.UploadStore, "/") + "/" + filename
	_, statErr := os.Stat(target)
	existed := statErr == nil

	if err := os.WriteFile(target, body, 0o644); err != nil {
		s.log.WithError(err).WithField("path", target).Error("put write failed")
		c.SetResponse(errorResponse(500, srv))
		return
	}

	if existed {
		c.SetResponse(http11.NoContent())
		return
	}
	respBody := "<html><body><h1>Created</h1><p>File created: " + filename + "</p></body></html>"
	c.SetResponse(http11.Text(201, "text/html", []byte(respBody)))
}
