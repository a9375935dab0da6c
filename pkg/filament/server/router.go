package server

import (
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/watt-toolkit/filament/pkg/filament/cgi"
	"github.com/watt-toolkit/filament/pkg/filament/config"
	"github.com/watt-toolkit/filament/pkg/filament/http11"
)

// route dispatches one complete request. On return the connection either
// has a response buffered, is waiting in CgiRunning, or has been handed a
// 4xx/5xx: the event loop decides what to arm based on that.
func (s *Server) route(c *Conn) {
	srv := s.cfg.GetServer(c.ServerIndex)
	head := c.Head()

	method, target, version, ok := http11.ParseRequestLine(head)
	if !ok || !strings.HasPrefix(version, "HTTP/") {
		c.SetResponse(errorResponse(400, srv))
		return
	}

	s.log.WithFields(logrus.Fields{
		"method": method, "target": target, "version": version,
	}).Info("request")

	if version == "HTTP/1.1" && !http11.HasHost(head) {
		c.SetResponse(errorResponse(400, srv))
		return
	}

	if s.applyRedirect(c, srv, target) {
		return
	}

	if !http11.IsImplemented(method) {
		c.SetResponse(errorResponse(501, srv))
		return
	}

	reqPath, query := http11.SplitTarget(target)
	loc := srv.FindLocation(reqPath)

	if loc != nil && !loc.AllowsMethod(method) {
		c.SetResponse(errorResponse(405, srv))
		return
	}

	var body []byte
	if method == http11.MethodPOST || method == http11.MethodPUT {
		var rejected bool
		body, rejected = s.resolveBody(c, srv, loc, head)
		if rejected {
			return
		}
	}

	if cgi.MatchExtension(reqPath, loc) != "" {
		s.startCGI(c, srv, loc, method, reqPath, query, head, body)
		return
	}

	switch method {
	case http11.MethodGET:
		s.handleGet(c, reqPath)
	case http11.MethodHEAD:
		s.handleHead(c, reqPath)
	case http11.MethodPOST:
		s.handlePost(c, reqPath, body)
	case http11.MethodPUT:
		s.handlePut(c, reqPath, body)
	case http11.MethodDELETE:
		s.handleDelete(c, reqPath)
	}
}

// applyRedirect answers a configured "return <code> <target>" when a
// location's path equals the request-target exactly. Only 301 keeps its
// code; anything else is emitted as 302.
func (s *Server) applyRedirect(c *Conn, srv *config.Server, target string) bool {
	for i := range srv.Locations {
		loc := &srv.Locations[i]
		if loc.Path != target || loc.Redirect == "" {
			continue
		}
		fields := strings.Fields(loc.Redirect)
		if len(fields) < 2 {
			continue
		}
		code, err := strconv.Atoi(fields[0])
		if err != nil || code != 301 {
			code = 302
		}
		c.SetResponse(http11.Redirect(code, fields[1]))
		return true
	}
	return false
}

// resolveBody produces the request body the handlers and CGI consume:
// chunked bodies are decoded, Content-Length bodies are clamped to the
// declared length. The per-location cap is re-checked against the real
// byte count; rejected reports that a 413/400 was already set.
func (s *Server) resolveBody(c *Conn, srv *config.Server, loc *config.Location, head []byte) (body []byte, rejected bool) {
	raw := c.Body()
	if http11.IsChunked(head) {
		decoded, err := http11.DecodeChunked(raw)
		if err != nil {
			c.SetResponse(errorResponse(400, srv))
			return nil, true
		}
		body = decoded
	} else {
		if length, ok := http11.ContentLength(head); ok && int64(len(raw)) > length {
			raw = raw[:length]
		}
		body = raw
	}

	limit := config.EffectiveMaxBody(srv, loc)
	if limit > 0 && int64(len(body)) > limit {
		c.SetResponse(errorResponse(413, srv))
		return nil, true
	}
	return body, false
}

// startCGI resolves the script file and hands the request to the CGI
// engine. The script path is the resolved filesystem path truncated right
// after the extension segment; anything beyond is PATH_INFO, not a file.
func (s *Server) startCGI(c *Conn, srv *config.Server, loc *config.Location, method, reqPath, query string, head, body []byte) {
	scriptFile := resolvePath(reqPath, srv, loc)
	if ext := cgi.MatchExtension(reqPath, loc); ext != "" {
		if extPos := strings.Index(scriptFile, ext); extPos >= 0 {
			afterExt := extPos + len(ext)
			if afterExt < len(scriptFile) && scriptFile[afterExt] == '/' {
				scriptFile = scriptFile[:afterExt]
			}
		}
	}

	if _, err := os.Stat(scriptFile); err != nil {
		s.log.WithField("script", scriptFile).Error("cgi script not found")
		c.SetResponse(errorResponse(404, srv))
		return
	}

	proc, err := s.cgi.Start(srv, loc, method, reqPath, query, scriptFile, head, body)
	if err != nil {
		s.log.WithError(err).Error("cgi start failed")
		c.SetResponse(errorResponse(500, srv))
		return
	}
	cgiSpawned.Inc()
	c.CGI = proc
	c.State = CgiRunning
}
