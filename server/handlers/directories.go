package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/shelfd/shelfd/core"
)

// V1ListDirectory handles GET /v1/directories/{path} and returns the
// directory listing as JSON, directories first.
func V1ListDirectory(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relPath := wildcardPath(r)

		items, err := engine.List(relPath)
		if err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		SendJSONResponse(w, http.StatusOK, items)
	}
}

// V1CreateDirectory handles POST /v1/directories/{path}. Creating an
// existing directory succeeds quietly.
func V1CreateDirectory(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relPath := wildcardPath(r)

		if err := engine.Mkdir(relPath); err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		SendJSONResponse(w, http.StatusCreated, map[string]string{"status": "created", "path": relPath})
	}
}
