package auth

import (
	"context"
	"crypto/subtle"
	"strings"
)

// APIKeyAuthenticator implements authentication using static API keys.
type APIKeyAuthenticator struct {
	keys []string
}

// NewAPIKeyAuthenticator creates a new API key authenticator.
func NewAPIKeyAuthenticator(keys []string) *APIKeyAuthenticator {
	valid := make([]string, 0, len(keys))
	for _, key := range keys {
		if key != "" {
			valid = append(valid, key)
		}
	}
	return &APIKeyAuthenticator{keys: valid}
}

// Authenticate validates a bearer token against the configured keys.
// Comparison is constant-time per key so timing does not leak key bytes.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return "", ErrAuthenticationFailed
	}

	for _, key := range a.keys {
		if subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1 {
			// API keys are not mapped to individual users.
			return "api", nil
		}
	}
	return "", ErrAuthenticationFailed
}
