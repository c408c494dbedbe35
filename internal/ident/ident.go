// Package ident provides the injectable clock and identifier generators used
// across the trash, version, and share subsystems so business logic stays
// deterministic in tests.
package ident

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator produces opaque, collision-resistant identifiers for trash
// entries and version blobs.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

// TokenGenerator produces short opaque share tokens. Tokens carry no
// semantic meaning; uniqueness rests on cryptographic randomness.
type TokenGenerator interface {
	Token() (string, error)
}

// RandomTokenGenerator generates URL-safe base64 tokens from crypto/rand.
type RandomTokenGenerator struct {
	// Bytes of entropy per token. 9 bytes encodes to 12 URL-safe characters.
	Bytes int
}

func (g RandomTokenGenerator) Token() (string, error) {
	n := g.Bytes
	if n <= 0 {
		n = 9
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
