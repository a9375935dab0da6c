package cgi

import (
	"strings"
	"testing"
)

func TestBuildResponseBasic(t *testing.T) {
	out := []byte("Content-Type: text/plain\r\n\r\nhello\n")
	got := string(BuildResponse(out))

	if !strings.HasPrefix(got, "HTTP/1.1 200 OK\r\n") {
		t.Errorf("status line: %q", got)
	}
	if !strings.Contains(got, "Content-Type: text/plain\r\n") {
		t.Errorf("content type: %q", got)
	}
	if !strings.Contains(got, "Content-Length: 6\r\n") {
		t.Errorf("content length: %q", got)
	}
	if !strings.HasSuffix(got, "\r\n\r\nhello\n") {
		t.Errorf("body: %q", got)
	}
}

func TestBuildResponseLFOnly(t *testing.T) {
	// scripts that print bare LF separators still parse
	out := []byte("Content-Type: text/plain\n\nhello\n")
	got := string(BuildResponse(out))
	if !strings.HasPrefix(got, "HTTP/1.1 200 OK\r\n") {
		t.Errorf("status line: %q", got)
	}
	if !strings.HasSuffix(got, "hello\n") {
		t.Errorf("body: %q", got)
	}
}

func TestBuildResponseStatusOverride(t *testing.T) {
	out := []byte("Status: 404 Not Found\r\nContent-Type: text/html\r\n\r\ngone")
	got := string(BuildResponse(out))
	if !strings.HasPrefix(got, "HTTP/1.1 404 Not Found\r\n") {
		t.Errorf("status line: %q", got)
	}

	// bare code picks up the standard reason phrase
	out = []byte("Status: 418\r\n\r\nshort and stout")
	got = string(BuildResponse(out))
	if !strings.HasPrefix(got, "HTTP/1.1 418 I'm a teapot\r\n") {
		t.Errorf("status line: %q", got)
	}
}

func TestBuildResponseLocationPromotes302(t *testing.T) {
	out := []byte("Location: /elsewhere\r\n\r\n")
	got := string(BuildResponse(out))
	if !strings.HasPrefix(got, "HTTP/1.1 302 Found\r\n") {
		t.Errorf("status line: %q", got)
	}
	if !strings.Contains(got, "Location: /elsewhere\r\n") {
		t.Errorf("location header: %q", got)
	}

	// an explicit Status wins over the promotion
	out = []byte("Status: 301 Moved Permanently\r\nLocation: /x\r\n\r\n")
	got = string(BuildResponse(out))
	if !strings.HasPrefix(got, "HTTP/1.1 301 Moved Permanently\r\n") {
		t.Errorf("status line: %q", got)
	}
}

func TestBuildResponseDropsChildContentLength(t *testing.T) {
	out := []byte("Content-Type: text/plain\r\nContent-Length: 9999\r\n\r\nhi")
	got := string(BuildResponse(out))
	if strings.Contains(got, "Content-Length: 9999") {
		t.Errorf("child Content-Length passed through: %q", got)
	}
	if !strings.Contains(got, "Content-Length: 2\r\n") {
		t.Errorf("recomputed length missing: %q", got)
	}
}

func TestBuildResponsePassthroughHeaders(t *testing.T) {
	out := []byte("Content-Type: text/html\r\nX-Powered-By: tests\r\nSet-Cookie: k=v\r\n\r\nbody")
	got := string(BuildResponse(out))
	if !strings.Contains(got, "X-Powered-By: tests\r\n") || !strings.Contains(got, "Set-Cookie: k=v\r\n") {
		t.Errorf("passthrough headers lost: %q", got)
	}
}

func TestBuildResponseDefaultContentType(t *testing.T) {
	out := []byte("X-Only: 1\r\n\r\npayload")
	got := string(BuildResponse(out))
	if !strings.Contains(got, "Content-Type: text/html\r\n") {
		t.Errorf("default content type missing: %q", got)
	}
}

func TestBuildResponseNoTerminator(t *testing.T) {
	out := []byte("this is not cgi output at all")
	got := string(BuildResponse(out))
	if !strings.HasPrefix(got, "HTTP/1.1 500 ") {
		t.Errorf("malformed output should 500: %q", got)
	}
}
