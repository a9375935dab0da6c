package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"..\\..\\win\\path.txt", "path.txt"},
		{"sp ace&odd!chars.txt", "spaceoddchars.txt"},
		{".hidden", "hidden"},
		{"...dots.txt", "dots.txt"},
		{"under_score-dash.ok", "under_score-dash.ok"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFilenameEmpty(t *testing.T) {
	for _, in := range []string{"", "....", "!!!", "/"} {
		got := sanitizeFilename(in)
		if !strings.HasPrefix(got, "upload_") || !strings.HasSuffix(got, ".bin") {
			t.Errorf("sanitizeFilename(%q) = %q, want synthesized name", in, got)
		}
	}
}

func TestFallbackFilename(t *testing.T) {
	got := fallbackFilename("/upload/photo.jpeg")
	if !strings.HasPrefix(got, "upload_") || !strings.HasSuffix(got, ".jpeg") {
		t.Errorf("fallbackFilename = %q, want upload_*.jpeg", got)
	}
	got = fallbackFilename("/upload/noext")
	if !strings.HasSuffix(got, ".bin") {
		t.Errorf("fallbackFilename = %q, want .bin suffix", got)
	}
}

func TestUniqueFilename(t *testing.T) {
	dir := t.TempDir()

	if got := uniqueFilename(dir, "fresh.txt"); got != "fresh.txt" {
		t.Errorf("free name changed: %q", got)
	}

	if err := os.WriteFile(filepath.Join(dir, "taken.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if got := uniqueFilename(dir, "taken.txt"); got != "taken_1.txt" {
		t.Errorf("first collision = %q, want taken_1.txt", got)
	}

	if err := os.WriteFile(filepath.Join(dir, "taken_1.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if got := uniqueFilename(dir, "taken.txt"); got != "taken_2.txt" {
		t.Errorf("second collision = %q, want taken_2.txt", got)
	}

	// a name without an extension gets the suffix at its very end
	if err := os.WriteFile(filepath.Join(dir, "noext"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if got := uniqueFilename(dir, "noext"); got != "noext_1" {
		t.Errorf("extensionless collision = %q", got)
	}
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		resp string
		want string
	}{
		{"HTTP/1.1 200 OK\r\n\r\n", "2xx"},
		{"HTTP/1.1 301 Moved Permanently\r\n\r\n", "3xx"},
		{"HTTP/1.1 404 Not Found\r\n\r\n", "4xx"},
		{"HTTP/1.1 504 Gateway Timeout\r\n\r\n", "5xx"},
		{"bogus", "unknown"},
	}
	for _, tt := range tests {
		if got := statusClass([]byte(tt.resp)); got != tt.want {
			t.Errorf("statusClass(%q) = %q, want %q", tt.resp, got, tt.want)
		}
	}
}
