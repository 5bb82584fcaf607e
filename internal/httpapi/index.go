package httpapi

import (
	_ "embed"
	"net/http"
)

//go:embed web/index.html
var indexPage []byte

// IndexHandler serves the embedded presentation page on the exact root path
// and the plain 404 body for everything the mux funnels here.
func (h *HandlerSet) IndexHandler() http.HandlerFunc {
	notFound := h.NotFoundHandler()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			notFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(indexPage)
	}
}
