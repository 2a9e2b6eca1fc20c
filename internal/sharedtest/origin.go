package sharedtest

import (
	"net/http"
	"path"
)

// OriginFiles maps request paths to response bodies for a fake origin server.
type OriginFiles map[string]string

// OriginHandler serves the given files for GET and HEAD, with a content type chosen from the file
// extension. Unknown paths get a 404 and other methods get a 405.
func OriginHandler(files OriginFiles) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		switch path.Ext(r.URL.Path) {
		case ".mp3":
			w.Header().Set("Content-Type", "audio/mpeg")
		case ".js":
			w.Header().Set("Content-Type", "text/javascript")
		default:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}
		_, _ = w.Write([]byte(body))
	})
}
