package http11

import (
	"testing"
)

func TestHeaderEnd(t *testing.T) {
	buf := []byte("GET / HTTP/1.1\r\nHost: x\r\n\r\nBODY")
	end, ok := HeaderEnd(buf, 0)
	if !ok {
		t.Fatal("HeaderEnd() not found, want found")
	}
	if got := string(buf[end:]); got != "BODY" {
		t.Errorf("bytes past header end = %q, want %q", got, "BODY")
	}
}

func TestHeaderEndIncremental(t *testing.T) {
	// the terminator straddles two appends; the resumed scan must back
	// up far enough to see it
	part1 := []byte("GET / HTTP/1.1\r\nHost: x\r\n\r")
	part2 := []byte("\nrest")

	if _, ok := HeaderEnd(part1, 0); ok {
		t.Fatal("HeaderEnd() found terminator in incomplete buffer")
	}
	buf := append(append([]byte{}, part1...), part2...)
	end, ok := HeaderEnd(buf, len(part1))
	if !ok {
		t.Fatal("HeaderEnd() missed terminator across append boundary")
	}
	if got := string(buf[end:]); got != "rest" {
		t.Errorf("bytes past header end = %q, want %q", got, "rest")
	}
}

func TestHeaderEndAbsent(t *testing.T) {
	if _, ok := HeaderEnd([]byte("GET / HTTP/1.1\r\nHost: x\r\n"), 0); ok {
		t.Error("HeaderEnd() = found, want not found")
	}
}

func TestParseRequestLine(t *testing.T) {
	tests := []struct {
		name    string
		head    string
		method  string
		target  string
		version string
		ok      bool
	}{
		{"simple", "GET /index.html HTTP/1.1\r\nHost: x", "GET", "/index.html", "HTTP/1.1", true},
		{"query", "POST /up?k=v HTTP/1.0\r\n", "POST", "/up?k=v", "HTTP/1.0", true},
		{"two tokens", "GET /\r\n", "", "", "", false},
		{"empty", "", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method, target, version, ok := ParseRequestLine([]byte(tt.head))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if method != tt.method || target != tt.target || version != tt.version {
				t.Errorf("got (%q, %q, %q), want (%q, %q, %q)",
					method, target, version, tt.method, tt.target, tt.version)
			}
		})
	}
}

func TestHeaderValue(t *testing.T) {
	head := []byte("GET / HTTP/1.1\r\nHost: example.com\r\nContent-Type: Text/HTML\r\nX-Thing:  padded  \r\n")

	v, ok := HeaderValue(head, "host")
	if !ok || v != "example.com" {
		t.Errorf("HeaderValue(host) = %q, %v", v, ok)
	}
	// the value's case must survive even though lookup is folded
	v, ok = HeaderValue(head, "CONTENT-TYPE")
	if !ok || v != "Text/HTML" {
		t.Errorf("HeaderValue(CONTENT-TYPE) = %q, %v", v, ok)
	}
	v, ok = HeaderValue(head, "X-Thing")
	if !ok || v != "padded" {
		t.Errorf("HeaderValue(X-Thing) = %q, %v, want trimmed value", v, ok)
	}
	if _, ok := HeaderValue(head, "Missing"); ok {
		t.Error("HeaderValue(Missing) = found")
	}
}

func TestContentLength(t *testing.T) {
	head := []byte("POST /up HTTP/1.1\r\nContent-Length: 42\r\n")
	n, ok := ContentLength(head)
	if !ok || n != 42 {
		t.Errorf("ContentLength() = %d, %v, want 42, true", n, ok)
	}

	if _, ok := ContentLength([]byte("POST /up HTTP/1.1\r\nContent-Length: -1\r\n")); ok {
		t.Error("negative Content-Length accepted")
	}
	if _, ok := ContentLength([]byte("POST /up HTTP/1.1\r\n")); ok {
		t.Error("missing Content-Length reported present")
	}
}

func TestIsChunked(t *testing.T) {
	tests := []struct {
		head string
		want bool
	}{
		{"POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n", true},
		{"POST / HTTP/1.1\r\nTransfer-Encoding: CHUNKED\r\n", true},
		{"POST / HTTP/1.1\r\nTransfer-Encoding: gzip, chunked\r\n", true},
		{"POST / HTTP/1.1\r\nTransfer-Encoding: gzip\r\n", false},
		{"POST / HTTP/1.1\r\nContent-Length: 3\r\n", false},
	}
	for _, tt := range tests {
		if got := IsChunked([]byte(tt.head)); got != tt.want {
			t.Errorf("IsChunked(%q) = %v, want %v", tt.head, got, tt.want)
		}
	}
}

func TestWantsKeepAlive(t *testing.T) {
	tests := []struct {
		version string
		head    string
		want    bool
	}{
		{"HTTP/1.1", "GET / HTTP/1.1\r\nHost: x\r\n", true},
		{"HTTP/1.1", "GET / HTTP/1.1\r\nConnection: close\r\n", false},
		{"HTTP/1.1", "GET / HTTP/1.1\r\nConnection: Close\r\n", false},
		{"HTTP/1.0", "GET / HTTP/1.0\r\n", false},
		{"HTTP/1.0", "GET / HTTP/1.0\r\nConnection: keep-alive\r\n", true},
		{"HTTP/0.9", "GET /\r\n", false},
	}
	for _, tt := range tests {
		if got := WantsKeepAlive(tt.version, []byte(tt.head)); got != tt.want {
			t.Errorf("WantsKeepAlive(%s, %q) = %v, want %v", tt.version, tt.head, got, tt.want)
		}
	}
}

func TestSplitTarget(t *testing.T) {
	path, query := SplitTarget("/cgi/run.py/extra?a=1&b=2")
	if path != "/cgi/run.py/extra" || query != "a=1&b=2" {
		t.Errorf("SplitTarget() = %q, %q", path, query)
	}
	path, query = SplitTarget("/plain")
	if path != "/plain" || query != "" {
		t.Errorf("SplitTarget() = %q, %q", path, query)
	}
}

func TestMethod(t *testing.T) {
	if got := Method([]byte("DELETE /x HTTP/1.1\r\n")); got != "DELETE" {
		t.Errorf("Method() = %q, want DELETE", got)
	}
	if got := Method([]byte("GET")); got != "" {
		t.Errorf("Method() on incomplete line = %q, want empty", got)
	}
}

func TestEachHeaderPreservesNameCase(t *testing.T) {
	head := []byte("GET / HTTP/1.1\r\nX-Custom-Header: one\r\nAccept: */*\r\n")
	var names []string
	EachHeader(head, func(name, value string) {
		names = append(names, name)
	})
	if len(names) != 2 || names[0] != "X-Custom-Header" || names[1] != "Accept" {
		t.Errorf("EachHeader names = %v", names)
	}
}

func TestIsImplemented(t *testing.T) {
	for _, m := range []string{"GET", "HEAD", "POST", "PUT", "DELETE"} {
		if !IsImplemented(m) {
			t.Errorf("IsImplemented(%s) = false", m)
		}
	}
	for _, m := range []string{"FOO", "OPTIONS", "PATCH", "get", ""} {
		if IsImplemented(m) {
			t.Errorf("IsImplemented(%s) = true", m)
		}
	}
}

func BenchmarkHeaderValue(b *testing.B) {
	head := []byte("GET / HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\nUser-Agent: bench\r\nContent-Type: text/plain\r\n")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		HeaderValue(head, "content-type")
	}
}

func BenchmarkHeaderEnd(b *testing.B) {
	buf := []byte("GET / HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		HeaderEnd(buf, 0)
	}
}
