package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/shelfd/shelfd/core"
	"github.com/shelfd/shelfd/metadata"
)

// MoveRequest is the body of POST /v1/move. Destination is the full new
// path; NewName instead renames in place.
type MoveRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination,omitempty"`
	NewName     string `json:"new_name,omitempty"`
}

// V1Move handles POST /v1/move: move or rename a file or directory,
// carrying its metadata along.
func V1Move(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MoveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			SendErrorResponse(w, logger, metadata.ErrPathInvalid, http.StatusBadRequest)
			return
		}

		if req.Source == "" || (req.Destination == "") == (req.NewName == "") {
			SendErrorResponse(w, logger, metadata.ErrPathInvalid, http.StatusBadRequest)
			return
		}

		var (
			finalPath string
			err       error
		)
		if req.NewName != "" {
			finalPath, err = engine.Rename(r.Context(), req.Source, req.NewName)
		} else {
			finalPath = req.Destination
			err = engine.Move(r.Context(), req.Source, req.Destination)
		}
		if err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		SendJSONResponse(w, http.StatusOK, map[string]string{"path": finalPath})
	}
}
