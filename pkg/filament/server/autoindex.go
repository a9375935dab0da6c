package server

import (
	"os"
	"sort"
	"strings"

	"github.com/valyala/bytebufferpool"

	"github.com/watt-toolkit/filament/pkg/filament/http11"
)

// directoryListing renders the autoindex page for dirPath as requested via
// urlPath. Subdirectories come first, then files, each sorted by name.
func directoryListing(dirPath, urlPath string) ([]byte, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	var dirs, files []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		} else {
			files = append(files, e.Name())
		}
	}
	sort.Strings(dirs)
	sort.Strings(files)

	if !strings.HasSuffix(urlPath, "/") {
		urlPath += "/"
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.WriteString("<html><head><title>Index of ")
	buf.WriteString(urlPath)
	buf.WriteString("</title></head><body><h1>Index of ")
	buf.WriteString(urlPath)
	buf.WriteString("</h1><hr><ul>\n")
	for _, d := range dirs {
		buf.WriteString("<li><a href=\"")
		buf.WriteString(urlPath + d + "/")
		buf.WriteString("\">")
		buf.WriteString(d + "/")
		buf.WriteString("</a></li>\n")
	}
	for _, f := range files {
		buf.WriteString("<li><a href=\"")
		buf.WriteString(urlPath + f)
		buf.WriteString("\">")
		buf.WriteString(f)
		buf.WriteString("</a></li>\n")
	}
	buf.WriteString("</ul><hr></body></html>\n")

	body := make([]byte, buf.Len())
	copy(body, buf.B)
	return http11.Text(200, "text/html", body), nil
}
