package http11

import (
	"bytes"
	"strings"
	"testing"
)

func TestTextResponse(t *testing.T) {
	got := Text(200, "text/html", []byte("<h1>ok</h1>\n"))
	want := "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/html\r\n" +
		"Content-Length: 12\r\n" +
		"\r\n" +
		"<h1>ok</h1>\n"
	if string(got) != want {
		t.Errorf("Text() =\n%q\nwant\n%q", got, want)
	}
}

func TestRedirect(t *testing.T) {
	got := string(Redirect(301, "/new"))
	if !strings.HasPrefix(got, "HTTP/1.1 301 Moved Permanently\r\n") {
		t.Errorf("Redirect(301) status line wrong: %q", got)
	}
	if !strings.Contains(got, "Location: /new\r\n") {
		t.Errorf("Redirect(301) missing Location header: %q", got)
	}
	if !strings.Contains(got, "Content-Length: ") {
		t.Errorf("Redirect(301) missing Content-Length: %q", got)
	}

	got = string(Redirect(302, "/elsewhere"))
	if !strings.HasPrefix(got, "HTTP/1.1 302 Found\r\n") {
		t.Errorf("Redirect(302) status line wrong: %q", got)
	}
}

func TestHeadResponse(t *testing.T) {
	got := string(Head(200, "image/png", 8192))
	want := "HTTP/1.1 200 OK\r\nContent-Type: image/png\r\nContent-Length: 8192\r\n\r\n"
	if got != want {
		t.Errorf("Head() = %q, want %q", got, want)
	}
}

func TestNoContent(t *testing.T) {
	got := string(NoContent())
	if got != "HTTP/1.1 204 No Content\r\n\r\n" {
		t.Errorf("NoContent() = %q", got)
	}
	if strings.Contains(got, "Content-Length") {
		t.Error("204 must not carry Content-Length")
	}
}

func TestBuilderHeadersAndReason(t *testing.T) {
	got := NewResponse(504).
		SetReason("Gateway Timeout").
		AddHeader("X-Script", "a.py").
		SetBody("text/plain", []byte("late")).
		Bytes()

	s := string(got)
	if !strings.HasPrefix(s, "HTTP/1.1 504 Gateway Timeout\r\n") {
		t.Errorf("status line: %q", s)
	}
	if !strings.Contains(s, "X-Script: a.py\r\n") {
		t.Errorf("missing passthrough header: %q", s)
	}
	if !strings.Contains(s, "Content-Length: 4\r\n") {
		t.Errorf("missing recomputed length: %q", s)
	}
	if !bytes.HasSuffix(got, []byte("\r\nlate")) {
		t.Errorf("body misplaced: %q", s)
	}
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "OK"},
		{404, "Not Found"},
		{413, "Request Entity Too Large"},
		{504, "Gateway Timeout"},
		{999, "Unknown"},
	}
	for _, tt := range tests {
		if got := StatusText(tt.code); got != tt.want {
			t.Errorf("StatusText(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/www/index.html", "text/html"},
		{"/www/a.PNG", "image/png"},
		{"/www/style.css", "text/css"},
		{"/www/data.json", "application/json"},
		{"/www/archive.tar.gz", "application/octet-stream"},
		{"/www/noext", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := ContentTypeFor(tt.path); got != tt.want {
			t.Errorf("ContentTypeFor(%s) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func BenchmarkTextResponse(b *testing.B) {
	body := []byte("<h1>ok</h1>")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Text(200, "text/html", body)
	}
}
