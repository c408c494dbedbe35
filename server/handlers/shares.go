package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shelfd/shelfd/metadata"
	"github.com/shelfd/shelfd/server/middleware"
	"github.com/shelfd/shelfd/shares"
)

// shareResponse is the management view of a link: the bcrypt hash never
// leaves the server, a boolean does.
type shareResponse struct {
	*shares.Link
	PasswordHash string `json:"password_hash,omitempty"`
	Protected    bool   `json:"protected"`
	URL          string `json:"url,omitempty"`
}

func newShareResponse(link *shares.Link, externalURL string) shareResponse {
	resp := shareResponse{Link: link, Protected: link.HasPassword()}
	if externalURL != "" {
		resp.URL = strings.TrimSuffix(externalURL, "/") + "/share/" + link.ID
	}
	return resp
}

// CreateShareRequest is the body of POST /v1/shares.
type CreateShareRequest struct {
	Path   string        `json:"path"`
	Policy shares.Policy `json:"policy"`
}

// V1CreateShare handles POST /v1/shares.
func V1CreateShare(manager *shares.Manager, externalURL string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateShareRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
			SendErrorResponse(w, logger, metadata.ErrPathInvalid, http.StatusBadRequest)
			return
		}

		createdBy, _ := middleware.GetUserID(r.Context())

		link, err := manager.Create(req.Path, req.Policy, createdBy)
		if err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		SendJSONResponse(w, http.StatusCreated, newShareResponse(link, externalURL))
	}
}

// V1ListShares handles GET /v1/shares, newest first.
func V1ListShares(manager *shares.Manager, externalURL string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		links, err := manager.List()
		if err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		out := make([]shareResponse, 0, len(links))
		for _, link := range links {
			out = append(out, newShareResponse(link, externalURL))
		}

		SendJSONResponse(w, http.StatusOK, out)
	}
}

// V1DeleteShare handles DELETE /v1/shares/{id}. Deleting an unknown id
// succeeds.
func V1DeleteShare(manager *shares.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		manager.Delete(chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusNoContent)
	}
}
