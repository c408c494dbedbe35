package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/shelfd/shelfd/events"
	"github.com/shelfd/shelfd/metadata"
	"github.com/shelfd/shelfd/trash"
)

// Upload writes file content at relPath, creating parent directories as
// needed. When the file already exists its current content is snapshotted
// into the version store before being overwritten. The stored checksum is
// updated from the bytes as they stream in.
func (e *Engine) Upload(ctx context.Context, relPath string, reader io.Reader) (*ChecksumRecord, error) {
	cleanRel, fullPath, err := e.resolve(relPath)
	if err != nil {
		return nil, err
	}
	if cleanRel == "" {
		return nil, metadata.ErrPathInvalid
	}

	if err := e.locks.Acquire(ctx, cleanRel); err != nil {
		return nil, err
	}
	defer e.locks.Release(cleanRel)

	if info, statErr := os.Lstat(fullPath); statErr == nil {
		if info.IsDir() {
			return nil, metadata.ErrConflict
		}
		// Pre-edit snapshot; best effort by design, but a real failure
		// (not a size skip) must stop the overwrite.
		if err := e.versions.Snapshot(cleanRel); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory: %w", err)
	}

	file, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s for writing: %w", cleanRel, err)
	}

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(file, hasher), reader)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(fullPath)
		return nil, fmt.Errorf("failed to write %s: %w", cleanRel, err)
	}

	record := &ChecksumRecord{
		SHA256:    hex.EncodeToString(hasher.Sum(nil)),
		SizeBytes: size,
		UpdatedAt: e.clock.Now().UTC(),
	}
	if err := e.store.Set(metadata.StoreChecksums, cleanRel, record); err != nil {
		return nil, err
	}

	e.events.Publish(events.Event{
		Type: events.TypeUploaded,
		Path: cleanRel,
		Time: record.UpdatedAt,
	})
	e.logger.Info("File uploaded",
		zap.String("path", cleanRel),
		zap.Int64("size", size))

	return record, nil
}

// Download opens a file for reading and counts the download. The counter is
// bumped before bytes flow but after the open succeeds, so a file that
// cannot be opened is never counted. No lock is held while streaming.
func (e *Engine) Download(ctx context.Context, relPath string) (io.ReadCloser, *ItemInfo, error) {
	cleanRel, fullPath, err := e.resolve(relPath)
	if err != nil {
		return nil, nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, metadata.ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to stat %s: %w", cleanRel, err)
	}
	if info.IsDir() {
		return nil, nil, metadata.ErrConflict
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", cleanRel, err)
	}

	e.incrementDownloads(ctx, cleanRel)

	return file, e.itemInfo(cleanRel, info), nil
}

// Stat returns metadata-enriched info for a single path.
func (e *Engine) Stat(relPath string) (*ItemInfo, error) {
	cleanRel, fullPath, err := e.resolve(relPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, metadata.ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat %s: %w", cleanRel, err)
	}
	return e.itemInfo(cleanRel, info), nil
}

// SoftDelete moves relPath into the trash and returns its trash entry.
func (e *Engine) SoftDelete(ctx context.Context, relPath string) (*trash.Entry, error) {
	cleanRel, _, err := e.resolve(relPath)
	if err != nil {
		return nil, err
	}
	if err := e.locks.Acquire(ctx, cleanRel); err != nil {
		return nil, err
	}
	defer e.locks.Release(cleanRel)

	return e.trash.SoftDelete(cleanRel)
}

// RestoreVersion rolls relPath back to a stored version under the per-path
// lock, so a concurrent upload cannot interleave with the rollback.
func (e *Engine) RestoreVersion(ctx context.Context, relPath, versionID string) error {
	cleanRel, _, err := e.resolve(relPath)
	if err != nil {
		return err
	}
	if err := e.locks.Acquire(ctx, cleanRel); err != nil {
		return err
	}
	defer e.locks.Release(cleanRel)

	if err := e.versions.Restore(cleanRel, versionID); err != nil {
		return err
	}

	e.events.Publish(events.Event{
		Type: events.TypeVersionRestored,
		Path: cleanRel,
		ID:   versionID,
		Time: e.clock.Now().UTC(),
	})
	return nil
}

func (e *Engine) incrementDownloads(ctx context.Context, cleanRel string) {
	key := "downloads:" + cleanRel
	if err := e.locks.Acquire(ctx, key); err != nil {
		return
	}
	defer e.locks.Release(key)

	var count int
	if err := e.store.Get(metadata.StoreDownloads, cleanRel, &count); err != nil && err != metadata.ErrNotFound {
		e.logger.Warn("Failed reading download counter", zap.String("path", cleanRel), zap.Error(err))
		return
	}
	if err := e.store.Set(metadata.StoreDownloads, cleanRel, count+1); err != nil {
		e.logger.Warn("Failed updating download counter", zap.String("path", cleanRel), zap.Error(err))
	}
}

func (e *Engine) itemInfo(cleanRel string, info os.FileInfo) *ItemInfo {
	item := &ItemInfo{
		Name:      info.Name(),
		Path:      cleanRel,
		SizeBytes: info.Size(),
		IsDir:     info.IsDir(),
		ModTime:   info.ModTime(),
		Favorite:  e.store.Has(metadata.StoreFavorites, cleanRel),
	}
	if cleanRel == "" {
		item.Name = "/"
	}
	var tags []string
	if err := e.store.Get(metadata.StoreTags, cleanRel, &tags); err == nil {
		item.Tags = tags
	}
	return item
}
