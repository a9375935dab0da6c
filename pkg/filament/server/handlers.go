package server

import (
	"os"
	"strings"

	"github.com/watt-toolkit/filament/pkg/filament/config"
	"github.com/watt-toolkit/filament/pkg/filament/http11"
)

// resolvePath maps a request path onto the filesystem. A root (location
// override or server default) is prepended to the full request path; an
// alias instead replaces the location prefix, with an emptied remainder
// treated as "/".
func resolvePath(reqPath string, srv *config.Server, loc *config.Location) string {
	if loc != nil && loc.Alias != "" {
		relative := strings.TrimPrefix(reqPath, strings.TrimSuffix(loc.Path, "/"))
		if relative == "" {
			relative = "/"
		}
		return loc.Alias + relative
	}
	root := srv.Root
	if loc != nil && loc.Root != "" {
		root = loc.Root
	}
	return root + reqPath
}

// effectiveIndex and effectiveAutoindex apply the location overrides.

func effectiveIndex(srv *config.Server, loc *config.Location) string {
	if loc != nil && loc.Index != "" {
		return loc.Index
	}
	return srv.Index
}

func effectiveAutoindex(srv *config.Server, loc *config.Location) bool {
	if loc != nil && loc.HasAutoindex {
		return loc.Autoindex
	}
	return srv.Autoindex
}

// serveFile reads a regular file and builds the 200 with its content type.
// Missing files become 404, permission failures 403.
func serveFile(path string, srv *config.Server) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return errorResponse(403, srv)
		}
		return errorResponse(404, srv)
	}
	return http11.Text(200, http11.ContentTypeFor(path), data)
}

// handleGet serves a file, an index file, or an autoindex listing.
func (s *Server) handleGet(c *Conn, reqPath string) {
	srv := s.cfg.GetServer(c.ServerIndex)
	loc := srv.FindLocation(reqPath)
	fullPath := resolvePath(reqPath, srv, loc)

	if info, err := os.Stat(fullPath); err == nil && info.IsDir() {
		indexPath := strings.TrimSuffix(fullPath, "/") + "/" + effectiveIndex(srv, loc)
		if idx, err := os.Stat(indexPath); err == nil && idx.Mode().IsRegular() {
			c.SetResponse(serveFile(indexPath, srv))
			return
		}
		if effectiveAutoindex(srv, loc) {
			listing, err := directoryListing(fullPath, reqPath)
			if err != nil {
				c.SetResponse(errorResponse(500, srv))
				return
			}
			c.SetResponse(listing)
			return
		}
		c.SetResponse(errorResponse(404, srv))
		return
	}

	c.SetResponse(serveFile(fullPath, srv))
}

// handleHead answers like GET but with headers only; Content-Length still
// reports the entity size.
func (s *Server) handleHead(c *Conn, reqPath string) {
	srv := s.cfg.GetServer(c.ServerIndex)
	loc := srv.FindLocation(reqPath)
	fullPath := resolvePath(reqPath, srv, loc)

	if info, err := os.Stat(fullPath); err == nil && info.IsDir() {
		indexPath := strings.TrimSuffix(fullPath, "/") + "/" + effectiveIndex(srv, loc)
		idx, err := os.Stat(indexPath)
		if err != nil || !idx.Mode().IsRegular() {
			c.SetResponse(headError(404, srv))
			return
		}
		fullPath = indexPath
	}

	info, err := os.Stat(fullPath)
	if err != nil || !info.Mode().IsRegular() {
		c.SetResponse(headError(404, srv))
		return
	}
	c.SetResponse(http11.Head(200, http11.ContentTypeFor(fullPath), info.Size()))
}

// handleDelete unlinks a regular file resolved exactly like GET resolves
// its target.
func (s *Server) handleDelete(c *Conn, reqPath string) {
	srv := s.cfg.GetServer(c.ServerIndex)
	loc := srv.FindLocation(reqPath)
	fullPath := resolvePath(reqPath, srv, loc)

	info, err := os.Stat(fullPath)
	if err != nil {
		c.SetResponse(errorResponse(404, srv))
		return
	}
	if !info.Mode().IsRegular() {
		c.SetResponse(errorResponse(405, srv))
		return
	}
	if err := os.Remove(fullPath); err != nil {
		s.log.WithError(err).WithField("path", fullPath).Error("delete failed")
		c.SetResponse(errorResponse(500, srv))
		return
	}
	body := "<html><body><h1>Delete Successful</h1><p>File deleted: " + reqPath + "</p></body></html>"
	c.SetResponse(http11.Text(200, "text/html", []byte(body)))
}
