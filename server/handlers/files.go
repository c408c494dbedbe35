package handlers

import (
	"io"
	"net/http"
	"path"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/shelfd/shelfd/core"
	"github.com/shelfd/shelfd/metadata"
	"github.com/shelfd/shelfd/metrics"
)

// V1GetFile handles GET /v1/files/{path} and streams file content.
func V1GetFile(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, "/v1/files/*").Observe(time.Since(start).Seconds())
		}()

		relPath := wildcardPath(r)

		reader, info, err := engine.Download(r.Context(), relPath)
		if err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}
		defer reader.Close()

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.FormatInt(info.SizeBytes, 10))
		w.Header().Set("Last-Modified", info.ModTime.UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(info.Path)+`"`)
		w.WriteHeader(http.StatusOK)

		if _, err := io.Copy(w, reader); err != nil {
			logger.Warn("File stream interrupted",
				zap.String("path", info.Path),
				zap.Error(err))
		}
	}
}

// V1HeadFile handles HEAD /v1/files/{path}. Item attributes travel in
// headers since HEAD carries no body.
func V1HeadFile(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relPath := wildcardPath(r)

		info, err := engine.Stat(relPath)
		if err != nil {
			// HEAD responses carry no body; the status code is the answer.
			switch err {
			case metadata.ErrNotFound:
				w.WriteHeader(http.StatusNotFound)
			case metadata.ErrPathInvalid:
				w.WriteHeader(http.StatusBadRequest)
			default:
				logger.Error("Stat failed", zap.String("path", relPath), zap.Error(err))
				w.WriteHeader(http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Length", strconv.FormatInt(info.SizeBytes, 10))
		w.Header().Set("Last-Modified", info.ModTime.UTC().Format(http.TimeFormat))
		if info.IsDir {
			w.Header().Set("X-Shelfd-Type", "directory")
		} else {
			w.Header().Set("X-Shelfd-Type", "file")

			if rec, err := engine.Checksum(relPath); err == nil {
				w.Header().Set("X-Shelfd-Checksum", rec.SHA256)
			}
			if downloads, err := engine.Downloads(relPath); err == nil {
				w.Header().Set("X-Shelfd-Downloads", strconv.Itoa(downloads))
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}

// V1PutFile handles PUT /v1/files/{path}: the request body becomes the new
// file content, snapshotting the previous content first.
func V1PutFile(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, "/v1/files/*").Observe(time.Since(start).Seconds())
		}()

		relPath := wildcardPath(r)

		record, err := engine.Upload(r.Context(), relPath, r.Body)
		if err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		SendJSONResponse(w, http.StatusCreated, record)
	}
}

// V1DeleteFile handles DELETE /v1/files/{path}: the item is quarantined in
// the trash, not removed.
func V1DeleteFile(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relPath := wildcardPath(r)

		entry, err := engine.SoftDelete(r.Context(), relPath)
		if err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		SendJSONResponse(w, http.StatusOK, entry)
	}
}
