package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Load reads and parses an nginx-flavored configuration file, then
// validates the result. Any failure is fatal to startup.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot open %s: %w", path, err)
	}
	defer f.Close()

	cfg := &Config{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := cleanLine(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "server") && strings.Contains(line, "{") {
			srv, err := parseServerBlock(sc)
			if err != nil {
				return nil, err
			}
			cfg.Servers = append(cfg.Servers, srv)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// cleanLine trims whitespace and strips a trailing '#' comment.
func cleanLine(raw string) string {
	line := strings.TrimSpace(raw)
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	return line
}

func parseServerBlock(sc *bufio.Scanner) (Server, error) {
	srv := newServer()
	for sc.Scan() {
		line := cleanLine(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "}") {
			return srv, nil
		}
		if strings.HasPrefix(line, "location") {
			loc, err := parseLocationBlock(sc, line)
			if err != nil {
				return srv, err
			}
			srv.Locations = append(srv.Locations, loc)
			continue
		}
		if !strings.HasSuffix(line, ";") {
			return srv, fmt.Errorf("config: missing semicolon after directive: %q", line)
		}
		tokens := strings.Fields(strings.TrimSuffix(line, ";"))
		if len(tokens) == 0 {
			continue
		}
		if err := applyServerDirective(&srv, tokens); err != nil {
			return srv, err
		}
	}
	return srv, fmt.Errorf("config: unterminated server block")
}

func parseLocationBlock(sc *bufio.Scanner, opening string) (Location, error) {
	loc := Location{Path: "/"}

	brace := strings.IndexByte(opening, '{')
	if brace < 0 {
		return loc, fmt.Errorf("config: invalid location syntax: %q", opening)
	}
	path := strings.TrimSpace(opening[len("location"):brace])
	if path == "" || !strings.HasPrefix(path, "/") {
		return loc, fmt.Errorf("config: invalid location path: %q", path)
	}
	loc.Path = path

	for sc.Scan() {
		line := cleanLine(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "}") {
			return loc, nil
		}
		tokens := strings.Fields(strings.TrimSuffix(line, ";"))
		if len(tokens) == 0 {
			continue
		}
		if err := applyLocationDirective(&loc, tokens); err != nil {
			return loc, err
		}
	}
	return loc, fmt.Errorf("config: unterminated location block")
}

func applyServerDirective(srv *Server, tokens []string) error {
	directive := tokens[0]
	switch {
	case directive == "listen" && len(tokens) >= 2:
		return parseListen(srv, tokens[1])
	case directive == "root" && len(tokens) >= 2:
		srv.Root = tokens[1]
	case directive == "index" && len(tokens) >= 2:
		srv.Index = tokens[1]
	case directive == "autoindex" && len(tokens) >= 2:
		srv.Autoindex = tokens[1] == "on"
	case directive == "client_max_body_size" && len(tokens) >= 2:
		size, err := parseBodySize(tokens[1])
		if err != nil {
			return err
		}
		srv.MaxBodySize = size
	case directive == "error_page" && len(tokens) >= 3:
		page := tokens[len(tokens)-1]
		for _, codeStr := range tokens[1 : len(tokens)-1] {
			code, err := strconv.Atoi(codeStr)
			if err != nil {
				return fmt.Errorf("config: invalid error_page code %q", codeStr)
			}
			srv.ErrorPages[code] = page
		}
	}
	return nil
}

func applyLocationDirective(loc *Location, tokens []string) error {
	directive := tokens[0]
	switch {
	case directive == "root" && len(tokens) >= 2:
		loc.Root = tokens[1]
	case directive == "alias" && len(tokens) >= 2:
		loc.Alias = tokens[1]
	case directive == "allow_methods" && len(tokens) >= 2:
		loc.AllowMethods = append(loc.AllowMethods, tokens[1:]...)
	case directive == "index" && len(tokens) >= 2:
		loc.Index = tokens[1]
	case directive == "autoindex" && len(tokens) >= 2:
		loc.Autoindex = tokens[1] == "on"
		loc.HasAutoindex = true
	case directive == "upload_store" && len(tokens) >= 2:
		loc.UploadStore = tokens[1]
	case directive == "cgi_path" && len(tokens) >= 2:
		loc.CgiPaths = append(loc.CgiPaths, tokens[1:]...)
	case directive == "cgi_ext" && len(tokens) >= 2:
		loc.CgiExts = append(loc.CgiExts, tokens[1:]...)
	case directive == "return" && len(tokens) >= 2:
		loc.Redirect = strings.Join(tokens[1:], " ")
	case directive == "client_max_body_size" && len(tokens) >= 2:
		size, err := parseBodySize(tokens[1])
		if err != nil {
			return err
		}
		loc.MaxBodySize = size
		loc.HasMaxBody = true
	}
	return nil
}

// parseListen handles both "listen host:port" and "listen port".
func parseListen(srv *Server, value string) error {
	portStr := value
	if colon := strings.IndexByte(value, ':'); colon >= 0 {
		srv.Host = value[:colon]
		portStr = value[colon+1:]
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("config: invalid port %q (must be 1-65535)", portStr)
	}
	srv.Port = port
	return nil
}

func parseBodySize(value string) (int64, error) {
	size, err := strconv.ParseInt(value, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("config: invalid client_max_body_size %q (must be non-negative)", value)
	}
	return size, nil
}
