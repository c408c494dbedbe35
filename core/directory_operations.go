package core

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/shelfd/shelfd/events"
	"github.com/shelfd/shelfd/internal/pathutil"
	"github.com/shelfd/shelfd/metadata"
)

// List returns the entries of a directory, directories first, each enriched
// with its tags and favorite flag.
func (e *Engine) List(relPath string) ([]*ItemInfo, error) {
	cleanRel, fullPath, err := e.resolve(relPath)
	if err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, metadata.ErrNotFound
		}
		return nil, fmt.Errorf("failed to list %s: %w", cleanRel, err)
	}

	items := make([]*ItemInfo, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, infoErr := de.Info()
		if infoErr != nil {
			continue
		}
		childRel := de.Name()
		if cleanRel != "" {
			childRel = cleanRel + "/" + de.Name()
		}
		items = append(items, e.itemInfo(childRel, info))
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].IsDir != items[j].IsDir {
			return items[i].IsDir
		}
		return items[i].Name < items[j].Name
	})

	return items, nil
}

// Mkdir creates a directory (and any missing parents) at relPath.
func (e *Engine) Mkdir(relPath string) error {
	cleanRel, fullPath, err := e.resolve(relPath)
	if err != nil {
		return err
	}
	if cleanRel == "" {
		return metadata.ErrPathInvalid
	}

	if info, statErr := os.Lstat(fullPath); statErr == nil {
		if info.IsDir() {
			return nil
		}
		return metadata.ErrConflict
	}

	if err := os.MkdirAll(fullPath, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", cleanRel, err)
	}

	e.logger.Info("Directory created", zap.String("path", cleanRel))
	return nil
}

// Move renames an item from src to dst (both relative paths). The
// filesystem rename and the metadata migration form one logical unit under
// both path locks, so a client reading metadata for the new path never
// observes a gap. An occupied destination is a Conflict.
func (e *Engine) Move(ctx context.Context, src, dst string) error {
	srcRel, srcFull, err := e.resolve(src)
	if err != nil {
		return err
	}
	dstRel, dstFull, err := e.resolve(dst)
	if err != nil {
		return err
	}
	if srcRel == "" || dstRel == "" {
		return metadata.ErrPathInvalid
	}
	if srcRel == dstRel {
		return nil
	}

	// Lock both paths in lexical order so two crossing moves cannot
	// deadlock.
	first, second := srcRel, dstRel
	if second < first {
		first, second = second, first
	}
	if err := e.locks.Acquire(ctx, first); err != nil {
		return err
	}
	defer e.locks.Release(first)
	if err := e.locks.Acquire(ctx, second); err != nil {
		return err
	}
	defer e.locks.Release(second)

	info, err := os.Lstat(srcFull)
	if err != nil {
		if os.IsNotExist(err) {
			return metadata.ErrNotFound
		}
		return fmt.Errorf("failed to stat %s: %w", srcRel, err)
	}
	if _, err := os.Lstat(dstFull); err == nil {
		return metadata.ErrConflict
	}

	if err := os.MkdirAll(filepath.Dir(dstFull), 0o755); err != nil {
		return fmt.Errorf("failed to create destination parent: %w", err)
	}
	if err := os.Rename(srcFull, dstFull); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", srcRel, dstRel, err)
	}

	if info.IsDir() {
		e.migrator.MigrateTree(srcRel, dstRel)
	} else {
		e.migrator.Migrate(srcRel, dstRel)
	}

	e.events.Publish(events.Event{
		Type: events.TypeMoved,
		Path: dstRel,
		Time: e.clock.Now().UTC(),
	})
	e.logger.Info("Item moved",
		zap.String("from", srcRel),
		zap.String("to", dstRel))

	return nil
}

// Rename changes an item's basename in place. newName must be a flat name:
// embedded separators or traversal tokens are rejected, not stripped.
func (e *Engine) Rename(ctx context.Context, relPath, newName string) (string, error) {
	if err := pathutil.ValidateName(newName); err != nil {
		return "", err
	}
	cleanRel, _, err := e.resolve(relPath)
	if err != nil {
		return "", err
	}
	if cleanRel == "" {
		return "", metadata.ErrPathInvalid
	}

	dstRel := newName
	if dir := path.Dir(cleanRel); dir != "." {
		dstRel = dir + "/" + newName
	}
	if err := e.Move(ctx, cleanRel, dstRel); err != nil {
		return "", err
	}
	return dstRel, nil
}
