// Package auth provides authentication for the shelfd management API.
// Share endpoints are deliberately outside it: a share link's policy is its
// whole access control.
package auth

import (
	"context"
	"errors"
)

// ErrAuthenticationFailed is returned for missing or invalid credentials.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Authenticator defines the interface for user authentication.
type Authenticator interface {
	// Authenticate validates a token and returns the associated user ID.
	Authenticate(ctx context.Context, token string) (userID string, err error)
}
