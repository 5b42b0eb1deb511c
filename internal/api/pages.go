package api

import (
	"net/http"
	"os"
	"path/filepath"
)

// pageFiles maps the console pages to files under the static directory.
var pageFiles = map[string]string{
	"/":                "index.html",
	"/jogos":           "jogos.html",
	"/calendario":      "calendario.html",
	"/admin":           "admin.html",
	"/admin/dashboard": "dashboard.html",
}

// servePage returns a handler for one page. A page without its own file
// falls back to index.html so a single-page bundle still works.
func servePage(dir, file string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, file)
		if _, err := os.Stat(path); err != nil {
			path = filepath.Join(dir, "index.html")
		}
		if _, err := os.Stat(path); err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, path)
	}
}

// assets serves everything else under the static directory.
func assets(dir string) http.Handler {
	return http.StripPrefix("/assets/", http.FileServer(http.Dir(filepath.Join(dir, "assets"))))
}
