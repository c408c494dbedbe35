package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/shelfd/shelfd/auth"
	"github.com/shelfd/shelfd/metadata"
	"github.com/shelfd/shelfd/shares"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SendErrorResponse sends a standardized JSON error response
func SendErrorResponse(w http.ResponseWriter, logger *zap.Logger, err error, defaultStatusCode int) {
	w.Header().Set("Content-Type", "application/json")

	var statusCode int
	var errorCode string

	// Map domain errors to HTTP status codes and error codes
	switch {
	case errors.Is(err, metadata.ErrNotFound):
		statusCode = http.StatusNotFound
		errorCode = "NOT_FOUND"
	case errors.Is(err, metadata.ErrConflict):
		statusCode = http.StatusConflict
		errorCode = "CONFLICT"
	case errors.Is(err, metadata.ErrPathInvalid):
		statusCode = http.StatusBadRequest
		errorCode = "PATH_INVALID"
	case errors.Is(err, auth.ErrAuthenticationFailed):
		statusCode = http.StatusUnauthorized
		errorCode = "AUTHENTICATION_FAILED"
	case errors.Is(err, shares.ErrExpired):
		statusCode = http.StatusGone
		errorCode = "SHARE_EXPIRED"
	case errors.Is(err, shares.ErrQuotaExhausted):
		statusCode = http.StatusForbidden
		errorCode = "SHARE_QUOTA_EXHAUSTED"
	case errors.Is(err, shares.ErrUploadOnly):
		statusCode = http.StatusForbidden
		errorCode = "SHARE_UPLOAD_ONLY"
	case errors.Is(err, shares.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		errorCode = "SHARE_UNAUTHORIZED"
	default:
		statusCode = defaultStatusCode
		errorCode = "INTERNAL_ERROR"
	}

	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Code:    errorCode,
		Message: err.Error(),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("Failed to encode error response", zap.Error(err))
		fmt.Fprintf(w, "internal error occurred")
	}

	logger.Debug("Error response sent",
		zap.String("error_code", errorCode),
		zap.Int("status_code", statusCode),
		zap.Error(err))
}

// SendJSONResponse sends a JSON response with the given status code.
func SendJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		fmt.Fprintf(w, `{"error":"failed to encode response"}`)
	}
}
