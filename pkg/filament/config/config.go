// Package config holds the immutable server configuration tree and the
// nginx-flavored mini-syntax loader that produces it.
//
// A Config is read-only after Load returns; the event loop and router
// consult it without synchronization.
package config

import (
	"fmt"
	"strings"
)

// Defaults applied to a server block that does not set the directive.
const (
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 8080
	DefaultRoot        = "./www"
	DefaultIndex       = "index.html"
	DefaultMaxBodySize = 1 << 20 // 1 MiB
)

// Location is one location block inside a server block.
type Location struct {
	Path         string   // prefix the block applies to, always starts with "/"
	Root         string   // overrides the server root when non-empty
	Alias        string   // replaces the location prefix instead of prepending
	AllowMethods []string // empty means every implemented method
	Index        string   // overrides the server index when non-empty
	Autoindex    bool
	HasAutoindex bool // tri-state: Autoindex is meaningful only when set
	UploadStore  string
	CgiPaths     []string // interpreter executables, parallel to CgiExts
	CgiExts      []string // ".py", ".php", ...
	Redirect     string   // "<code> <target>", codes 301 and 302
	MaxBodySize  int64
	HasMaxBody   bool // 0 + set means unlimited; unset inherits the server cap
}

// Server is one server block: a listening endpoint plus its defaults.
type Server struct {
	Host        string
	Port        int
	Root        string
	Index       string
	Autoindex   bool
	MaxBodySize int64 // 0 = unlimited
	ErrorPages  map[int]string
	Locations   []Location
}

// Config is the loaded configuration tree.
type Config struct {
	Servers []Server
}

// AllowsMethod reports whether the location admits the method. A location
// with no allow_methods directive admits everything.
func (l *Location) AllowsMethod(method string) bool {
	if len(l.AllowMethods) == 0 {
		return true
	}
	for _, m := range l.AllowMethods {
		if m == method {
			return true
		}
	}
	return false
}

// EffectiveMaxBody resolves the body cap for a request routed to loc under
// srv: an explicitly-set location cap wins, otherwise the server cap.
func EffectiveMaxBody(srv *Server, loc *Location) int64 {
	if loc != nil && loc.HasMaxBody {
		return loc.MaxBodySize
	}
	return srv.MaxBodySize
}

// FindLocation resolves the longest location whose path is a path-aligned
// prefix of reqPath: the paths are equal, or the location ends with '/', or
// the request path continues with '/'. Returns nil when nothing matches.
func (s *Server) FindLocation(reqPath string) *Location {
	var best *Location
	bestLen := -1
	for i := range s.Locations {
		loc := &s.Locations[i]
		if !strings.HasPrefix(reqPath, loc.Path) {
			continue
		}
		aligned := len(reqPath) == len(loc.Path) ||
			strings.HasSuffix(loc.Path, "/") ||
			reqPath[len(loc.Path)] == '/'
		if aligned && len(loc.Path) > bestLen {
			bestLen = len(loc.Path)
			best = loc
		}
	}
	return best
}

// ServerCount returns the number of server blocks.
func (c *Config) ServerCount() int { return len(c.Servers) }

// GetServer returns the server block at index.
func (c *Config) GetServer(index int) *Server { return &c.Servers[index] }

// First-server accessors with defaults for an empty tree. Kept for startup
// banners and tests.

func (c *Config) Host() string {
	if len(c.Servers) == 0 {
		return DefaultHost
	}
	return c.Servers[0].Host
}

func (c *Config) Port() int {
	if len(c.Servers) == 0 {
		return DefaultPort
	}
	return c.Servers[0].Port
}

func (c *Config) Root() string {
	if len(c.Servers) == 0 {
		return DefaultRoot
	}
	return c.Servers[0].Root
}

func (c *Config) Index() string {
	if len(c.Servers) == 0 {
		return DefaultIndex
	}
	return c.Servers[0].Index
}

// Validate rejects configurations the listeners cannot be built from:
// no server blocks, or two blocks binding the same (host, port).
func (c *Config) Validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("config: no server blocks defined")
	}
	seen := make(map[string]bool, len(c.Servers))
	for i := range c.Servers {
		key := fmt.Sprintf("%s:%d", c.Servers[i].Host, c.Servers[i].Port)
		if seen[key] {
			return fmt.Errorf("config: duplicate server binding %s", key)
		}
		seen[key] = true
	}
	return nil
}

func newServer() Server {
	return Server{
		Host:        DefaultHost,
		Port:        DefaultPort,
		Root:        DefaultRoot,
		Index:       DefaultIndex,
		MaxBodySize: DefaultMaxBodySize,
		ErrorPages:  make(map[int]string),
	}
}
