// Package trash implements soft delete: items move into a quarantine
// directory under an opaque id, with enough recorded metadata to restore
// them to their original location or purge them for good.
package trash

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shelfd/shelfd/events"
	"github.com/shelfd/shelfd/internal/ident"
	"github.com/shelfd/shelfd/internal/pathutil"
	"github.com/shelfd/shelfd/metadata"
	"github.com/shelfd/shelfd/metrics"
)

// Entry records a soft-deleted item. The physical bytes live in quarantine
// under Entry.ID until the entry is restored or purged.
type Entry struct {
	ID           string    `json:"id"`
	OriginalPath string    `json:"original_path"`
	OriginalName string    `json:"original_name"`
	DeletedAt    time.Time `json:"deleted_at"`
	SizeBytes    int64     `json:"size_bytes"`
	IsFolder     bool      `json:"is_folder"`
}

// VersionDeleter removes all version history for a path; satisfied by
// versions.Manager. Purging an item must leave no version blobs behind.
type VersionDeleter interface {
	DeleteAll(relPath string) error
}

// Manager owns the quarantine directory and the trash index document.
type Manager struct {
	root       string
	quarantine string
	store      *metadata.Store
	migrator   *metadata.Migrator
	versions   VersionDeleter
	clock      ident.Clock
	ids        ident.IDGenerator
	events     events.Sink
	logger     *zap.Logger
}

// NewManager creates a trash manager. The quarantine directory is created if
// missing; it must live on the same filesystem as root so deletes stay a
// single rename.
func NewManager(
	root, quarantine string,
	store *metadata.Store,
	migrator *metadata.Migrator,
	versions VersionDeleter,
	clock ident.Clock,
	ids ident.IDGenerator,
	sink events.Sink,
	logger *zap.Logger,
) (*Manager, error) {
	if err := os.MkdirAll(quarantine, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create quarantine dir %s: %w", quarantine, err)
	}
	return &Manager{
		root:       root,
		quarantine: quarantine,
		store:      store,
		migrator:   migrator,
		versions:   versions,
		clock:      clock,
		ids:        ids,
		events:     sink,
		logger:     logger,
	}, nil
}

// SoftDelete moves the item at relPath into quarantine and records a trash
// entry. The entry is written to the in-memory index before the rename so a
// crash mid-operation leaves a recoverable "trashed but bytes not moved"
// state rather than orphaned bytes.
func (m *Manager) SoftDelete(relPath string) (*Entry, error) {
	cleanRel, err := pathutil.Clean(relPath)
	if err != nil {
		return nil, err
	}
	if cleanRel == "" {
		// The storage root itself is not deletable.
		return nil, metadata.ErrPathInvalid
	}

	fullPath, err := pathutil.SafeJoin(m.root, cleanRel)
	if err != nil {
		return nil, err
	}

	info, err := os.Lstat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, metadata.ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat %s: %w", cleanRel, err)
	}

	size := info.Size()
	if info.IsDir() {
		size, err = dirSize(fullPath)
		if err != nil {
			return nil, fmt.Errorf("failed to size directory %s: %w", cleanRel, err)
		}
	}

	entry := &Entry{
		ID:           m.ids.New(),
		OriginalPath: cleanRel,
		OriginalName: filepath.Base(cleanRel),
		DeletedAt:    m.clock.Now().UTC(),
		SizeBytes:    size,
		IsFolder:     info.IsDir(),
	}

	if err := m.store.Set(metadata.StoreTrash, entry.ID, entry); err != nil {
		return nil, fmt.Errorf("failed to record trash entry: %w", err)
	}

	if err := os.Rename(fullPath, filepath.Join(m.quarantine, entry.ID)); err != nil {
		m.store.Delete(metadata.StoreTrash, entry.ID)
		metrics.TrashOperationsTotal.WithLabelValues("soft_delete", "failure").Inc()
		return nil, fmt.Errorf("failed to quarantine %s: %w", cleanRel, err)
	}

	metrics.TrashOperationsTotal.WithLabelValues("soft_delete", "success").Inc()
	metrics.TrashedBytes.Add(float64(size))
	m.events.Publish(events.Event{
		Type: events.TypeTrashed,
		Path: cleanRel,
		ID:   entry.ID,
		Time: entry.DeletedAt,
	})
	m.logger.Info("Item soft-deleted",
		zap.String("path", cleanRel),
		zap.String("trash_id", entry.ID),
		zap.Int64("size", size),
		zap.Bool("is_folder", entry.IsFolder))

	return entry, nil
}

// Restore moves a trashed item back to its original location, recreating
// missing parent directories. If the original name is occupied, a
// " (restored N)" suffix is appended (before the extension for files) until
// a free name is found; side-car metadata follows the final name.
func (m *Manager) Restore(id string) (string, error) {
	var entry Entry
	if err := m.store.Get(metadata.StoreTrash, id, &entry); err != nil {
		return "", err
	}

	targetRel := entry.OriginalPath
	fullTarget, err := pathutil.SafeJoin(m.root, targetRel)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullTarget), 0o755); err != nil {
		return "", fmt.Errorf("failed to recreate parent directories: %w", err)
	}

	for n := 1; ; n++ {
		if _, statErr := os.Lstat(fullTarget); os.IsNotExist(statErr) {
			break
		}
		targetRel = restoredName(entry.OriginalPath, entry.IsFolder, n)
		fullTarget, err = pathutil.SafeJoin(m.root, targetRel)
		if err != nil {
			return "", err
		}
	}

	if err := os.Rename(filepath.Join(m.quarantine, id), fullTarget); err != nil {
		metrics.TrashOperationsTotal.WithLabelValues("restore", "failure").Inc()
		return "", fmt.Errorf("failed to restore %s: %w", entry.OriginalPath, err)
	}

	m.store.Delete(metadata.StoreTrash, id)
	if targetRel != entry.OriginalPath {
		if entry.IsFolder {
			m.migrator.MigrateTree(entry.OriginalPath, targetRel)
		} else {
			m.migrator.Migrate(entry.OriginalPath, targetRel)
		}
	}

	metrics.TrashOperationsTotal.WithLabelValues("restore", "success").Inc()
	metrics.TrashedBytes.Sub(float64(entry.SizeBytes))
	m.events.Publish(events.Event{
		Type: events.TypeRestored,
		Path: targetRel,
		ID:   id,
		Time: m.clock.Now().UTC(),
	})
	m.logger.Info("Item restored",
		zap.String("trash_id", id),
		zap.String("original_path", entry.OriginalPath),
		zap.String("restored_path", targetRel))

	return targetRel, nil
}

// Purge permanently deletes a trashed item's bytes and index record, along
// with all side-car metadata and version history for its original path.
// Purging an unknown id, or an entry whose bytes are already gone, is a
// no-op rather than an error: metadata and bytes may drift and purge must
// converge them.
func (m *Manager) Purge(id string) error {
	var entry Entry
	if err := m.store.Get(metadata.StoreTrash, id, &entry); err != nil {
		return nil
	}

	if err := os.RemoveAll(filepath.Join(m.quarantine, id)); err != nil {
		metrics.TrashOperationsTotal.WithLabelValues("purge", "failure").Inc()
		return fmt.Errorf("failed to delete quarantined bytes for %s: %w", id, err)
	}

	if m.versions != nil {
		for _, path := range m.versionedPaths(&entry) {
			if err := m.versions.DeleteAll(path); err != nil {
				m.logger.Warn("Failed to delete version history during purge",
					zap.String("path", path),
					zap.Error(err))
			}
		}
	}
	if entry.IsFolder {
		m.migrator.DropTree(entry.OriginalPath)
	} else {
		m.migrator.Drop(entry.OriginalPath)
	}
	m.store.Delete(metadata.StoreTrash, id)

	metrics.TrashOperationsTotal.WithLabelValues("purge", "success").Inc()
	metrics.TrashedBytes.Sub(float64(entry.SizeBytes))
	m.events.Publish(events.Event{
		Type: events.TypePurged,
		Path: entry.OriginalPath,
		ID:   id,
		Time: m.clock.Now().UTC(),
	})
	m.logger.Info("Trash entry purged",
		zap.String("trash_id", id),
		zap.String("original_path", entry.OriginalPath))

	return nil
}

// versionedPaths returns every version-index key the entry's purge must
// clear: the item itself, plus every descendant when a folder is purged so
// no blob outlives its directory.
func (m *Manager) versionedPaths(entry *Entry) []string {
	paths := []string{entry.OriginalPath}
	if !entry.IsFolder {
		return paths
	}
	prefix := entry.OriginalPath + "/"
	for _, key := range m.store.Keys(metadata.StoreVersions) {
		if strings.HasPrefix(key, prefix) {
			paths = append(paths, key)
		}
	}
	return paths
}

// PurgeExpired purges every entry older than the retention duration.
// Intended to be invoked periodically by an external scheduler.
func (m *Manager) PurgeExpired(retention time.Duration) (int, error) {
	now := m.clock.Now()
	purged := 0
	for _, id := range m.store.Keys(metadata.StoreTrash) {
		var entry Entry
		if err := m.store.Get(metadata.StoreTrash, id, &entry); err != nil {
			continue
		}
		if now.Sub(entry.DeletedAt) < retention {
			continue
		}
		if err := m.Purge(id); err != nil {
			return purged, err
		}
		purged++
	}
	if purged > 0 {
		m.logger.Info("Expired trash entries purged", zap.Int("count", purged))
	}
	return purged, nil
}

// EmptyAll purges every entry unconditionally.
func (m *Manager) EmptyAll() (int, error) {
	purged := 0
	for _, id := range m.store.Keys(metadata.StoreTrash) {
		if err := m.Purge(id); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}

// List returns all trash entries, newest deletion first.
func (m *Manager) List() ([]*Entry, error) {
	ids := m.store.Keys(metadata.StoreTrash)
	entries := make([]*Entry, 0, len(ids))
	for _, id := range ids {
		var entry Entry
		if err := m.store.Get(metadata.StoreTrash, id, &entry); err != nil {
			continue
		}
		entries = append(entries, &entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].DeletedAt.After(entries[j].DeletedAt)
	})
	return entries, nil
}

// restoredName appends a disambiguating suffix: before the extension for
// files, at the end for folders.
func restoredName(relPath string, isFolder bool, n int) string {
	suffix := fmt.Sprintf(" (restored %d)", n)
	if isFolder {
		return relPath + suffix
	}
	ext := filepath.Ext(relPath)
	return strings.TrimSuffix(relPath, ext) + suffix + ext
}

// dirSize sums the sizes of all regular files under dir.
func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, infoErr := d.Info()
			if infoErr != nil {
				return infoErr
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}
