// Package core orchestrates the storage integrity layer: every request
// handler resolves paths, moves bytes, and updates metadata through the
// Engine, which enforces root confinement and per-path serialization.
package core

import (
	"time"

	"go.uber.org/zap"

	"github.com/shelfd/shelfd/events"
	"github.com/shelfd/shelfd/internal/ident"
	"github.com/shelfd/shelfd/internal/pathutil"
	"github.com/shelfd/shelfd/locks"
	"github.com/shelfd/shelfd/metadata"
	"github.com/shelfd/shelfd/trash"
	"github.com/shelfd/shelfd/versions"
)

// ItemInfo describes a file or directory under the storage root, enriched
// with the metadata clients render next to it.
type ItemInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	IsDir     bool      `json:"is_dir"`
	ModTime   time.Time `json:"mod_time"`
	Favorite  bool      `json:"favorite"`
	Tags      []string  `json:"tags,omitempty"`
}

// ChecksumRecord is the stored content checksum for a file.
type ChecksumRecord struct {
	SHA256    string    `json:"sha256"`
	SizeBytes int64     `json:"size_bytes"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment is a user note attached to a path.
type Comment struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Engine is the core shelfd engine that orchestrates operations.
type Engine struct {
	root     string
	store    *metadata.Store
	migrator *metadata.Migrator
	trash    *trash.Manager
	versions *versions.Manager
	locks    locks.Manager
	events   events.Sink
	clock    ident.Clock
	logger   *zap.Logger
}

// NewEngine creates a new core engine instance.
func NewEngine(
	root string,
	store *metadata.Store,
	migrator *metadata.Migrator,
	trashManager *trash.Manager,
	versionManager *versions.Manager,
	lockManager locks.Manager,
	sink events.Sink,
	clock ident.Clock,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		root:     root,
		store:    store,
		migrator: migrator,
		trash:    trashManager,
		versions: versionManager,
		locks:    lockManager,
		events:   sink,
		clock:    clock,
		logger:   logger,
	}
}

// Root returns the storage root. Never mutated after startup.
func (e *Engine) Root() string { return e.root }

// resolve normalizes a relative path and joins it onto the storage root.
func (e *Engine) resolve(rel string) (cleanRel, fullPath string, err error) {
	cleanRel, err = pathutil.Clean(rel)
	if err != nil {
		return "", "", err
	}
	fullPath, err = pathutil.SafeJoin(e.root, cleanRel)
	if err != nil {
		return "", "", err
	}
	return cleanRel, fullPath, nil
}
