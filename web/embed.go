// Package web embeds the widget client (dist/) and serves it over HTTP.
//
// dist/widget.js is the script a textbook page includes to mount the tutor;
// dist/index.html is a sample chapter page that hosts it.
package web

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

// WidgetScript is the path of the client script.
const WidgetScript = "/widget.js"

// AssetHandler serves the embedded widget assets. Paths that do not name an
// embedded file fall back to the sample page.
func AssetHandler() http.Handler {
	subFS, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}

	fileServer := http.FileServer(http.FS(subFS))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" {
			name = "index.html"
		}

		if f, err := subFS.Open(name); err == nil {
			if closeErr := f.Close(); closeErr != nil {
				slog.Debug("web: failed to close embedded file", "path", name, "error", closeErr)
			}
			if "/"+name == WidgetScript {
				// Pages pin the script by URL; let them pick up new builds.
				w.Header().Set("Cache-Control", "no-cache")
			}
			fileServer.ServeHTTP(w, r)
			return
		}

		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}
