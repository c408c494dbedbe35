package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/shelfd/shelfd/core"
	"github.com/shelfd/shelfd/metadata"
	"github.com/shelfd/shelfd/versions"
)

// V1ListVersions handles GET /v1/versions/{path}, newest first.
func V1ListVersions(manager *versions.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relPath := wildcardPath(r)

		entries, err := manager.List(relPath)
		if err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []versions.Entry{}
		}

		SendJSONResponse(w, http.StatusOK, entries)
	}
}

// V1DeleteVersions handles DELETE /v1/versions/{path}: drop all retained
// versions and their blobs.
func V1DeleteVersions(manager *versions.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relPath := wildcardPath(r)

		if err := manager.DeleteAll(relPath); err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// V1RestoreVersion handles POST /v1/versions/restore with body
// {"path": "...", "version_id": "..."}.
func V1RestoreVersion(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Path      string `json:"path"`
			VersionID string `json:"version_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" || req.VersionID == "" {
			SendErrorResponse(w, logger, metadata.ErrPathInvalid, http.StatusBadRequest)
			return
		}

		if err := engine.RestoreVersion(r.Context(), req.Path, req.VersionID); err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		SendJSONResponse(w, http.StatusOK, map[string]string{"path": req.Path, "restored_version": req.VersionID})
	}
}
