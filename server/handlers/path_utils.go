package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

// wildcardPath extracts the relative storage path from a chi wildcard route
// such as /v1/files/*. The returned path is raw; every engine operation
// sanitizes it before touching the filesystem.
func wildcardPath(r *http.Request) string {
	raw := chi.URLParam(r, "*")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}
