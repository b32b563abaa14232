// Package ui serves the embedded single-page board client.
package ui

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

// Handler serves the board client. Requests under /api/ go to api when it
// is non-nil. Paths with no extension that match no file fall back to
// index.html; missing assets return 404.
func Handler(api http.Handler) (http.Handler, error) {
	sub, err := fs.Sub(distFS, "dist")
	if err != nil {
		return nil, err
	}
	files := http.FileServerFS(sub)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := path.Clean(r.URL.Path)
		if api != nil && strings.HasPrefix(p, "/api/") {
			api.ServeHTTP(w, r)
			return
		}
		if p == "/" {
			files.ServeHTTP(w, r)
			return
		}

		if _, err := fs.Stat(sub, strings.TrimPrefix(p, "/")); err == nil {
			files.ServeHTTP(w, r)
			return
		}
		if strings.Contains(path.Base(p), ".") {
			http.NotFound(w, r)
			return
		}
		r.URL.Path = "/"
		files.ServeHTTP(w, r)
	}), nil
}
