// Package shares issues and enforces policy-gated share links: opaque
// tokens bound to a path plus an optional password, expiry, download quota,
// and upload-only flag.
package shares

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/shelfd/shelfd/events"
	"github.com/shelfd/shelfd/internal/ident"
	"github.com/shelfd/shelfd/internal/pathutil"
	"github.com/shelfd/shelfd/metadata"
	"github.com/shelfd/shelfd/metrics"
)

// Share-policy denials. Each maps to a distinct client-facing code so the
// caller can render distinct messages.
var (
	ErrExpired        = errors.New("share link has expired")
	ErrQuotaExhausted = errors.New("share link download quota exhausted")
	ErrUnauthorized   = errors.New("share link password required or incorrect")
	ErrUploadOnly     = errors.New("share link is upload-only")
)

// Policy is the caller-supplied access policy for a new share link. All
// fields are optional; the zero value is an open, download-only link.
type Policy struct {
	Password     string     `json:"password,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	MaxDownloads *int       `json:"max_downloads,omitempty"`
	UploadOnly   bool       `json:"upload_only,omitempty"`
}

// Link is a stored share link. The password is kept only as a bcrypt hash.
type Link struct {
	ID            string     `json:"id"`
	Path          string     `json:"path"`
	PasswordHash  string     `json:"password_hash,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	MaxDownloads  *int       `json:"max_downloads,omitempty"`
	DownloadCount int        `json:"download_count"`
	UploadOnly    bool       `json:"upload_only"`
	CreatedAt     time.Time  `json:"created_at"`
	CreatedBy     string     `json:"created_by"`
}

// HasPassword reports whether the link is password protected.
func (l *Link) HasPassword() bool { return l.PasswordHash != "" }

// Manager issues, verifies, and retires share links.
type Manager struct {
	root   string
	store  *metadata.Store
	clock  ident.Clock
	tokens ident.TokenGenerator
	events events.Sink
	logger *zap.Logger
}

// NewManager creates a share link manager over the given storage root.
func NewManager(
	root string,
	store *metadata.Store,
	clock ident.Clock,
	tokens ident.TokenGenerator,
	sink events.Sink,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		root:   root,
		store:  store,
		clock:  clock,
		tokens: tokens,
		events: sink,
		logger: logger,
	}
}

// Create issues a new share link for an existing file or directory.
func (m *Manager) Create(relPath string, policy Policy, createdBy string) (*Link, error) {
	cleanRel, err := pathutil.Clean(relPath)
	if err != nil {
		return nil, err
	}
	fullPath, err := pathutil.SafeJoin(m.root, cleanRel)
	if err != nil {
		return nil, err
	}
	if _, err := os.Lstat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil, metadata.ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat share target %s: %w", cleanRel, err)
	}

	token, err := m.tokens.Token()
	if err != nil {
		return nil, err
	}

	link := &Link{
		ID:           token,
		Path:         cleanRel,
		ExpiresAt:    policy.ExpiresAt,
		MaxDownloads: policy.MaxDownloads,
		UploadOnly:   policy.UploadOnly,
		CreatedAt:    m.clock.Now().UTC(),
		CreatedBy:    createdBy,
	}

	if policy.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(policy.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash share password: %w", err)
		}
		link.PasswordHash = string(hash)
	}

	if err := m.store.Set(metadata.StoreShares, link.ID, link); err != nil {
		return nil, fmt.Errorf("failed to store share link: %w", err)
	}

	metrics.ShareCreationsTotal.Inc()
	m.events.Publish(events.Event{
		Type: events.TypeShareCreated,
		Path: cleanRel,
		ID:   link.ID,
		Time: link.CreatedAt,
	})
	m.logger.Info("Share link created",
		zap.String("share_id", link.ID),
		zap.String("path", cleanRel),
		zap.Bool("password", link.HasPassword()),
		zap.Bool("upload_only", link.UploadOnly))

	return link, nil
}

// Get returns a share link by id without enforcing its policy.
func (m *Manager) Get(id string) (*Link, error) {
	var link Link
	if err := m.store.Get(metadata.StoreShares, id, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// ResolveForAccess verifies a share link's policy for one access attempt.
// Checks run in a fixed order, each a hard stop: unknown id, expiry,
// download quota, password, upload-only. download states whether the caller
// intends to download bytes (as opposed to uploading into an upload-only
// share).
func (m *Manager) ResolveForAccess(id, suppliedPassword string, download bool) (*Link, error) {
	link, err := m.Get(id)
	if err != nil {
		metrics.ShareAccessTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}

	if link.ExpiresAt != nil && m.clock.Now().After(*link.ExpiresAt) {
		metrics.ShareAccessTotal.WithLabelValues("expired").Inc()
		return nil, ErrExpired
	}

	if link.MaxDownloads != nil && link.DownloadCount >= *link.MaxDownloads {
		metrics.ShareAccessTotal.WithLabelValues("quota_exhausted").Inc()
		return nil, ErrQuotaExhausted
	}

	if link.HasPassword() {
		if err := bcrypt.CompareHashAndPassword([]byte(link.PasswordHash), []byte(suppliedPassword)); err != nil {
			metrics.ShareAccessTotal.WithLabelValues("unauthorized").Inc()
			return nil, ErrUnauthorized
		}
	}

	if link.UploadOnly && download {
		metrics.ShareAccessTotal.WithLabelValues("forbidden").Inc()
		return nil, ErrUploadOnly
	}

	metrics.ShareAccessTotal.WithLabelValues("success").Inc()
	return link, nil
}

// RecordDownload increments the download counter for a successful download.
// The handler calls this once the response stream has started, so a
// transfer that never begins is not charged a quota unit. A client that
// disconnects mid-stream still consumed its unit; the counter is never
// rolled back.
func (m *Manager) RecordDownload(id string) error {
	// Concurrent downloads of the same link race on the counter, so the
	// increment runs under the store's document lock as one atomic step.
	var count int
	err := m.store.Update(metadata.StoreShares, id, func(raw json.RawMessage) (any, error) {
		var link Link
		if err := json.Unmarshal(raw, &link); err != nil {
			return nil, fmt.Errorf("failed to decode share link %s: %w", id, err)
		}
		link.DownloadCount++
		count = link.DownloadCount
		return &link, nil
	})
	if err != nil {
		return fmt.Errorf("failed to record download: %w", err)
	}
	m.logger.Debug("Share download recorded",
		zap.String("share_id", id),
		zap.Int("download_count", count))
	return nil
}

// Delete removes a share link. Deleting an unknown id is a no-op so the
// cleanup sweep stays idempotent.
func (m *Manager) Delete(id string) {
	link, err := m.Get(id)
	if err != nil {
		return
	}
	m.store.Delete(metadata.StoreShares, id)
	m.events.Publish(events.Event{
		Type: events.TypeShareDeleted,
		Path: link.Path,
		ID:   id,
		Time: m.clock.Now().UTC(),
	})
	m.logger.Info("Share link deleted", zap.String("share_id", id))
}

// List returns all share links, newest first.
func (m *Manager) List() ([]*Link, error) {
	ids := m.store.Keys(metadata.StoreShares)
	links := make([]*Link, 0, len(ids))
	for _, id := range ids {
		link, err := m.Get(id)
		if err != nil {
			continue
		}
		links = append(links, link)
	}
	sort.Slice(links, func(i, j int) bool {
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

// CollectExpired returns the ids of links that are expired or have
// exhausted their download quota. Pure scan, no mutation; the caller
// deletes each id.
func (m *Manager) CollectExpired() []string {
	now := m.clock.Now()
	var expired []string
	for _, id := range m.store.Keys(metadata.StoreShares) {
		link, err := m.Get(id)
		if err != nil {
			continue
		}
		if link.ExpiresAt != nil && now.After(*link.ExpiresAt) {
			expired = append(expired, id)
			continue
		}
		if link.MaxDownloads != nil && link.DownloadCount >= *link.MaxDownloads {
			expired = append(expired, id)
		}
	}
	return expired
}
