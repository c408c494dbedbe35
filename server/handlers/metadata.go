package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/shelfd/shelfd/core"
	"github.com/shelfd/shelfd/metadata"
	"github.com/shelfd/shelfd/server/middleware"
)

// V1GetTags handles GET /v1/tags/{path}.
func V1GetTags(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relPath := wildcardPath(r)

		tags, err := engine.Tags(relPath)
		if err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}
		if tags == nil {
			tags = []string{}
		}

		SendJSONResponse(w, http.StatusOK, tags)
	}
}

// V1AddTag handles POST /v1/tags/{path} with body {"tag": "..."}.
func V1AddTag(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relPath := wildcardPath(r)

		var req struct {
			Tag string `json:"tag"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Tag) == "" {
			SendErrorResponse(w, logger, metadata.ErrPathInvalid, http.StatusBadRequest)
			return
		}

		if err := engine.AddTag(r.Context(), relPath, strings.TrimSpace(req.Tag)); err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// V1RemoveTag handles DELETE /v1/tags/{path}?tag=name.
func V1RemoveTag(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relPath := wildcardPath(r)

		tag := r.URL.Query().Get("tag")
		if tag == "" {
			SendErrorResponse(w, logger, metadata.ErrPathInvalid, http.StatusBadRequest)
			return
		}

		if err := engine.RemoveTag(r.Context(), relPath, tag); err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// V1ListFavorites handles GET /v1/favorites.
func V1ListFavorites(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		favorites := engine.Favorites()
		if favorites == nil {
			favorites = []string{}
		}
		SendJSONResponse(w, http.StatusOK, favorites)
	}
}

// V1SetFavorite handles PUT /v1/favorites/{path}.
func V1SetFavorite(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relPath := wildcardPath(r)

		if err := engine.SetFavorite(relPath, true); err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// V1UnsetFavorite handles DELETE /v1/favorites/{path}.
func V1UnsetFavorite(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relPath := wildcardPath(r)

		if err := engine.SetFavorite(relPath, false); err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// V1GetComments handles GET /v1/comments/{path}.
func V1GetComments(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relPath := wildcardPath(r)

		comments, err := engine.Comments(relPath)
		if err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}
		if comments == nil {
			comments = []core.Comment{}
		}

		SendJSONResponse(w, http.StatusOK, comments)
	}
}

// V1AddComment handles POST /v1/comments/{path} with body
// {"author": "...", "text": "..."}. Author falls back to the
// authenticated user.
func V1AddComment(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relPath := wildcardPath(r)

		var req struct {
			Author string `json:"author"`
			Text   string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
			SendErrorResponse(w, logger, metadata.ErrPathInvalid, http.StatusBadRequest)
			return
		}
		if req.Author == "" {
			if userID, ok := middleware.GetUserID(r.Context()); ok {
				req.Author = userID
			}
		}

		comment, err := engine.AddComment(r.Context(), relPath, req.Author, req.Text)
		if err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		SendJSONResponse(w, http.StatusCreated, comment)
	}
}
