package handlers

import (
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shelfd/shelfd/core"
	"github.com/shelfd/shelfd/internal/pathutil"
	"github.com/shelfd/shelfd/metadata"
	"github.com/shelfd/shelfd/shares"
)

// sharePassword pulls the supplied password from the X-Share-Password
// header or the password query parameter.
func sharePassword(r *http.Request) string {
	if pw := r.Header.Get("X-Share-Password"); pw != "" {
		return pw
	}
	return r.URL.Query().Get("password")
}

// PublicShareDownload handles GET /share/{id}: stream the shared file, or
// list the shared directory. No API authentication; the link policy is the
// access control.
func PublicShareDownload(manager *shares.Manager, engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		link, err := manager.ResolveForAccess(id, sharePassword(r), true)
		if err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		info, err := engine.Stat(link.Path)
		if err != nil {
			// The shared target was moved or purged after the link was made.
			SendErrorResponse(w, logger, metadata.ErrNotFound, http.StatusNotFound)
			return
		}

		if info.IsDir {
			items, err := engine.List(link.Path)
			if err != nil {
				SendErrorResponse(w, logger, err, http.StatusInternalServerError)
				return
			}
			SendJSONResponse(w, http.StatusOK, items)
			return
		}

		reader, info, err := engine.Download(r.Context(), link.Path)
		if err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}
		defer reader.Close()

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.FormatInt(info.SizeBytes, 10))
		w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(info.Path)+`"`)
		w.WriteHeader(http.StatusOK)

		// The quota is consumed once the stream starts. A client that
		// disconnects mid-transfer has still spent a download; counts are
		// never rolled back.
		if err := manager.RecordDownload(id); err != nil {
			logger.Warn("Failed to record share download", zap.String("share_id", id), zap.Error(err))
		}

		if _, err := io.Copy(w, reader); err != nil {
			logger.Warn("Share stream interrupted",
				zap.String("share_id", id),
				zap.Error(err))
		}
	}
}

// PublicShareUpload handles POST /share/{id}?filename=name for upload-only
// links whose target is a directory.
func PublicShareUpload(manager *shares.Manager, engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		link, err := manager.ResolveForAccess(id, sharePassword(r), false)
		if err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		if !link.UploadOnly {
			SendErrorResponse(w, logger, shares.ErrUnauthorized, http.StatusUnauthorized)
			return
		}

		filename := r.URL.Query().Get("filename")
		if err := pathutil.ValidateName(filename); err != nil {
			SendErrorResponse(w, logger, err, http.StatusBadRequest)
			return
		}

		record, err := engine.Upload(r.Context(), path.Join(link.Path, filename), r.Body)
		if err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		SendJSONResponse(w, http.StatusCreated, record)
	}
}
