package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shelfd/shelfd/trash"
)

// V1ListTrash handles GET /v1/trash, newest first.
func V1ListTrash(manager *trash.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := manager.List()
		if err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []*trash.Entry{}
		}

		SendJSONResponse(w, http.StatusOK, entries)
	}
}

// V1EmptyTrash handles DELETE /v1/trash: permanently purge everything.
func V1EmptyTrash(manager *trash.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		purged, err := manager.EmptyAll()
		if err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		SendJSONResponse(w, http.StatusOK, map[string]int{"purged": purged})
	}
}

// V1RestoreTrash handles POST /v1/trash/{id}/restore.
func V1RestoreTrash(manager *trash.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		restoredPath, err := manager.Restore(id)
		if err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		SendJSONResponse(w, http.StatusOK, map[string]string{"restored_path": restoredPath})
	}
}

// V1PurgeTrash handles DELETE /v1/trash/{id}. Purging an unknown id
// succeeds: the desired state is already true.
func V1PurgeTrash(manager *trash.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := manager.Purge(id); err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
