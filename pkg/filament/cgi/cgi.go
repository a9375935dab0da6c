// Package cgi implements the CGI/1.1 subsystem: detecting script requests,
// resolving interpreters, building the child environment, spawning the
// child with its stdin/stdout redirected onto pipes, driving those pipes
// non-blockingly, and turning the child's output into an HTTP response.
//
// The package never touches client sockets. The server's event loop owns
// the pipes' readiness and calls back into the Process it got from Start.
package cgi

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/watt-toolkit/filament/pkg/filament/config"
	"github.com/watt-toolkit/filament/pkg/filament/http11"
)

// ServerSoftware is the identity handed to scripts in SERVER_SOFTWARE.
const ServerSoftware = "Filament/1.0"

// interpreterNames mark interpreter-style executables: they receive the
// script name as argv[1]. Anything else is treated as a standalone CGI that
// finds its script through SCRIPT_FILENAME.
var interpreterNames = []string{"php", "python", "perl", "ruby"}

// MatchExtension returns the location's CGI extension that the request
// path carries, or "" when the request is not a CGI request. The extension
// token ends at the next '/', at '?', or at the end of the path.
func MatchExtension(path string, loc *config.Location) string {
	if loc == nil || len(loc.CgiExts) == 0 {
		return ""
	}
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 {
		return ""
	}
	ext := path[dot:]
	if slash := strings.IndexByte(ext, '/'); slash >= 0 {
		ext = ext[:slash]
	} else if q := strings.IndexByte(ext, '?'); q >= 0 {
		ext = ext[:q]
	}
	for _, known := range loc.CgiExts {
		if ext == known {
			return ext
		}
	}
	return ""
}

// Interpreter resolves the executable configured for ext. cgi_ext[i] maps
// to cgi_path[i]; when cgi_path is shorter the last entry is reused. The
// result is resolved through symlinks and checked for execute permission.
func Interpreter(ext string, loc *config.Location) (string, error) {
	if loc == nil || len(loc.CgiPaths) == 0 {
		return "", fmt.Errorf("cgi: no interpreter configured for %s", ext)
	}
	interp := ""
	for i, known := range loc.CgiExts {
		if known != ext {
			continue
		}
		if i < len(loc.CgiPaths) {
			interp = loc.CgiPaths[i]
		} else {
			interp = loc.CgiPaths[len(loc.CgiPaths)-1]
		}
		break
	}
	if interp == "" {
		return "", fmt.Errorf("cgi: no interpreter configured for %s", ext)
	}
	if resolved, err := filepath.EvalSymlinks(interp); err == nil {
		interp = resolved
	}
	if abs, err := filepath.Abs(interp); err == nil {
		interp = abs
	}
	info, err := os.Stat(interp)
	if err != nil {
		return "", fmt.Errorf("cgi: interpreter %s: %w", interp, err)
	}
	if info.Mode()&0o111 == 0 {
		return "", fmt.Errorf("cgi: interpreter %s is not executable", interp)
	}
	return interp, nil
}

// SplitScriptURL divides a query-free request path into the script URL
// prefix and PATH_INFO. The prefix runs through the extension segment; a
// '/' after it starts PATH_INFO.
func SplitScriptURL(cleanPath string) (scriptURL, pathInfo string) {
	dot := strings.LastIndexByte(cleanPath, '.')
	if dot < 0 {
		return cleanPath, ""
	}
	if slash := strings.IndexByte(cleanPath[dot:], '/'); slash >= 0 {
		return cleanPath[:dot+slash], cleanPath[dot+slash:]
	}
	return cleanPath, ""
}

// isInterpreterStyle reports whether the executable wants the script as an
// argument rather than from the environment.
func isInterpreterStyle(interpreter string) bool {
	for _, name := range interpreterNames {
		if strings.Contains(interpreter, name) {
			return true
		}
	}
	return false
}

// headerToEnvName turns a request header name into its HTTP_ environment
// form: uppercased, '-' mapped to '_'.
func headerToEnvName(name string) string {
	var b strings.Builder
	b.WriteString("HTTP_")
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '-':
			b.WriteByte('_')
		case 'a' <= c && c <= 'z':
			b.WriteByte(c - ('a' - 'A'))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// BuildEnv assembles the CGI/1.1 environment for one request.
//
// scriptURL is the script's URL prefix, scriptFile the filesystem path of
// the script, pathInfo the trailing path portion (may be empty), query the
// raw query string. head is the request's header block; every header except
// Content-Type and Content-Length is exported as an HTTP_ variable.
//
// PATH_INFO deliberately falls back to the script URL when empty, so
// standalone testers that read the request URI from PATH_INFO keep working.
func BuildEnv(srv *config.Server, method, scriptURL, scriptFile, pathInfo, query string,
	head []byte, contentLength int) []string {

	absScript := scriptFile
	if resolved, err := filepath.EvalSymlinks(scriptFile); err == nil {
		absScript = resolved
	}
	if abs, err := filepath.Abs(absScript); err == nil {
		absScript = abs
	}

	env := []string{
		"GATEWAY_INTERFACE=CGI/1.1",
		"SERVER_PROTOCOL=HTTP/1.1",
		"SERVER_SOFTWARE=" + ServerSoftware,
		"SERVER_NAME=" + srv.Host,
		fmt.Sprintf("SERVER_PORT=%d", srv.Port),
		"DOCUMENT_ROOT=" + srv.Root,
		"REQUEST_METHOD=" + method,
		"SCRIPT_NAME=" + scriptURL,
		"SCRIPT_FILENAME=" + absScript,
	}

	if pathInfo == "" {
		env = append(env, "PATH_INFO="+scriptURL)
	} else {
		env = append(env, "PATH_INFO="+pathInfo)
		env = append(env, "PATH_TRANSLATED="+srv.Root+pathInfo)
	}
	env = append(env, "QUERY_STRING="+query)

	requestURI := scriptURL + pathInfo
	if query != "" {
		requestURI += "?" + query
	}
	env = append(env, "REQUEST_URI="+requestURI)

	if contentLength > 0 {
		env = append(env, fmt.Sprintf("CONTENT_LENGTH=%d", contentLength))
	}
	if ct, ok := http11.HeaderValue(head, "Content-Type"); ok {
		env = append(env, "CONTENT_TYPE="+ct)
	}

	env = append(env,
		"REMOTE_ADDR=127.0.0.1",
		"REMOTE_HOST=localhost",
		"REDIRECT_STATUS=200",
	)

	http11.EachHeader(head, func(name, value string) {
		lower := strings.ToLower(name)
		if lower == "content-type" || lower == "content-length" {
			return
		}
		env = append(env, headerToEnvName(name)+"="+value)
	})
	return env
}
