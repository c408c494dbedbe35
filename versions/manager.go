// Package versions snapshots file contents before edits so users can roll a
// file back. Versioning is a convenience with bounded retention, not a
// backup system: oversized files are skipped and old versions are evicted.
package versions

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/shelfd/shelfd/internal/ident"
	"github.com/shelfd/shelfd/internal/pathutil"
	"github.com/shelfd/shelfd/metadata"
	"github.com/shelfd/shelfd/metrics"
)

const (
	// DefaultMaxPerFile is how many versions are retained per path.
	DefaultMaxPerFile = 20

	// DefaultSizeCeiling is the largest file that gets snapshotted.
	DefaultSizeCeiling = 10 << 20 // 10 MiB
)

// Entry describes one retained version. The backing blob is named by
// ID+Extension in the blob directory.
type Entry struct {
	ID        string    `json:"id"`
	Extension string    `json:"extension"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager owns the version blob directory and the version index document
// (a newest-first list of entries per relative path).
type Manager struct {
	root        string
	blobDir     string
	store       *metadata.Store
	clock       ident.Clock
	ids         ident.IDGenerator
	maxPerFile  int
	sizeCeiling int64
	logger      *zap.Logger
}

// NewManager creates a version manager. maxPerFile and sizeCeiling fall back
// to the defaults when non-positive.
func NewManager(
	root, blobDir string,
	store *metadata.Store,
	clock ident.Clock,
	ids ident.IDGenerator,
	maxPerFile int,
	sizeCeiling int64,
	logger *zap.Logger,
) (*Manager, error) {
	if err := os.MkdirAll(blobDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create version blob dir %s: %w", blobDir, err)
	}
	if maxPerFile <= 0 {
		maxPerFile = DefaultMaxPerFile
	}
	if sizeCeiling <= 0 {
		sizeCeiling = DefaultSizeCeiling
	}
	return &Manager{
		root:        root,
		blobDir:     blobDir,
		store:       store,
		clock:       clock,
		ids:         ids,
		maxPerFile:  maxPerFile,
		sizeCeiling: sizeCeiling,
		logger:      logger,
	}, nil
}

// Snapshot copies the current content of relPath into the version store.
// Called immediately before an existing file is overwritten. Missing files
// and files above the size ceiling are skipped silently: versioning must
// never block an edit.
func (m *Manager) Snapshot(relPath string) error {
	// The index is keyed by normalized paths, so every entry point
	// normalizes first; "./x.txt" and "x.txt" must share one history.
	relPath, err := pathutil.Clean(relPath)
	if err != nil {
		return err
	}
	fullPath, err := pathutil.SafeJoin(m.root, relPath)
	if err != nil {
		return err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", relPath, err)
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	if info.Size() > m.sizeCeiling {
		metrics.VersionSnapshotsTotal.WithLabelValues("skipped_size").Inc()
		m.logger.Debug("Skipping version snapshot, file above ceiling",
			zap.String("path", relPath),
			zap.Int64("size", info.Size()),
			zap.Int64("ceiling", m.sizeCeiling))
		return nil
	}

	entry := Entry{
		ID:        m.ids.New(),
		Extension: filepath.Ext(relPath),
		SizeBytes: info.Size(),
		CreatedAt: m.clock.Now().UTC(),
	}

	if err := copyFile(fullPath, m.blobPath(entry)); err != nil {
		metrics.VersionSnapshotsTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("failed to snapshot %s: %w", relPath, err)
	}

	list, err := m.List(relPath)
	if err != nil {
		return err
	}
	list = append([]Entry{entry}, list...)

	// Enforce the retention cap: the oldest entries fall off the end and
	// their backing blobs are deleted.
	if len(list) > m.maxPerFile {
		for _, evicted := range list[m.maxPerFile:] {
			if err := os.Remove(m.blobPath(evicted)); err != nil && !os.IsNotExist(err) {
				m.logger.Warn("Failed to remove evicted version blob",
					zap.String("version_id", evicted.ID),
					zap.Error(err))
			}
			metrics.VersionEvictionsTotal.Inc()
		}
		list = list[:m.maxPerFile]
	}

	if err := m.store.Set(metadata.StoreVersions, relPath, list); err != nil {
		return fmt.Errorf("failed to update version index: %w", err)
	}

	metrics.VersionSnapshotsTotal.WithLabelValues("success").Inc()
	m.logger.Debug("Version snapshot taken",
		zap.String("path", relPath),
		zap.String("version_id", entry.ID),
		zap.Int("retained", len(list)))

	return nil
}

// Restore copies a stored version's bytes over the live file. The current
// content is snapshotted first so restoring never loses the pre-restore
// state.
func (m *Manager) Restore(relPath, versionID string) error {
	relPath, err := pathutil.Clean(relPath)
	if err != nil {
		return err
	}
	list, err := m.List(relPath)
	if err != nil {
		return err
	}

	var target *Entry
	for i := range list {
		if list[i].ID == versionID {
			target = &list[i]
			break
		}
	}
	if target == nil {
		return metadata.ErrNotFound
	}

	if err := m.Snapshot(relPath); err != nil {
		return fmt.Errorf("failed to snapshot current content before restore: %w", err)
	}

	fullPath, err := pathutil.SafeJoin(m.root, relPath)
	if err != nil {
		return err
	}
	// Write beside the live file and rename so a failed copy never leaves
	// the live file truncated.
	tmp := fullPath + ".restore-tmp"
	if err := copyFile(m.blobPath(*target), tmp); err != nil {
		return fmt.Errorf("failed to restore version %s: %w", versionID, err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to restore version %s: %w", versionID, err)
	}

	m.logger.Info("Version restored",
		zap.String("path", relPath),
		zap.String("version_id", versionID))

	return nil
}

// DeleteAll removes every version blob and the index entry for relPath.
func (m *Manager) DeleteAll(relPath string) error {
	relPath, err := pathutil.Clean(relPath)
	if err != nil {
		return err
	}
	list, err := m.List(relPath)
	if err != nil {
		return err
	}
	for _, entry := range list {
		if err := os.Remove(m.blobPath(entry)); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("Failed to remove version blob",
				zap.String("version_id", entry.ID),
				zap.Error(err))
		}
	}
	m.store.Delete(metadata.StoreVersions, relPath)
	return nil
}

// List returns the retained versions for relPath, newest first. A path with
// no history returns an empty list.
func (m *Manager) List(relPath string) ([]Entry, error) {
	relPath, err := pathutil.Clean(relPath)
	if err != nil {
		return nil, err
	}
	var list []Entry
	if err := m.store.Get(metadata.StoreVersions, relPath, &list); err != nil {
		if err == metadata.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return list, nil
}

func (m *Manager) blobPath(e Entry) string {
	return filepath.Join(m.blobDir, e.ID+e.Extension)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
