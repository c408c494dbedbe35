package core

import (
	"context"
	"fmt"
	"os"

	"github.com/shelfd/shelfd/metadata"
)

// AddTag attaches a tag to an existing item. Adding a tag the item already
// carries is a no-op.
func (e *Engine) AddTag(ctx context.Context, relPath, tag string) error {
	if tag == "" {
		return fmt.Errorf("tag must not be empty: %w", metadata.ErrPathInvalid)
	}
	cleanRel, err := e.requireExists(relPath)
	if err != nil {
		return err
	}

	if err := e.locks.Acquire(ctx, "tags:"+cleanRel); err != nil {
		return err
	}
	defer e.locks.Release("tags:" + cleanRel)

	var tags []string
	if err := e.store.Get(metadata.StoreTags, cleanRel, &tags); err != nil && err != metadata.ErrNotFound {
		return err
	}
	for _, t := range tags {
		if t == tag {
			return nil
		}
	}
	return e.store.Set(metadata.StoreTags, cleanRel, append(tags, tag))
}

// RemoveTag detaches a tag; removing the last tag drops the key entirely.
func (e *Engine) RemoveTag(ctx context.Context, relPath, tag string) error {
	cleanRel, _, err := e.resolve(relPath)
	if err != nil {
		return err
	}

	if err := e.locks.Acquire(ctx, "tags:"+cleanRel); err != nil {
		return err
	}
	defer e.locks.Release("tags:" + cleanRel)

	var tags []string
	if err := e.store.Get(metadata.StoreTags, cleanRel, &tags); err != nil {
		if err == metadata.ErrNotFound {
			return nil
		}
		return err
	}
	kept := tags[:0]
	for _, t := range tags {
		if t != tag {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		e.store.Delete(metadata.StoreTags, cleanRel)
		return nil
	}
	return e.store.Set(metadata.StoreTags, cleanRel, kept)
}

// Tags returns the tags attached to a path.
func (e *Engine) Tags(relPath string) ([]string, error) {
	cleanRel, _, err := e.resolve(relPath)
	if err != nil {
		return nil, err
	}
	var tags []string
	if err := e.store.Get(metadata.StoreTags, cleanRel, &tags); err != nil && err != metadata.ErrNotFound {
		return nil, err
	}
	return tags, nil
}

// SetFavorite adds or removes a path from the favorites set.
func (e *Engine) SetFavorite(relPath string, favorite bool) error {
	cleanRel, err := e.requireExists(relPath)
	if err != nil {
		return err
	}
	if favorite {
		return e.store.Set(metadata.StoreFavorites, cleanRel, true)
	}
	e.store.Delete(metadata.StoreFavorites, cleanRel)
	return nil
}

// Favorites returns every favorited path, sorted.
func (e *Engine) Favorites() []string {
	return e.store.Keys(metadata.StoreFavorites)
}

// AddComment appends a comment to a path's comment list.
func (e *Engine) AddComment(ctx context.Context, relPath, author, text string) (*Comment, error) {
	cleanRel, err := e.requireExists(relPath)
	if err != nil {
		return nil, err
	}

	if err := e.locks.Acquire(ctx, "comments:"+cleanRel); err != nil {
		return nil, err
	}
	defer e.locks.Release("comments:" + cleanRel)

	comment := Comment{
		Author:    author,
		Text:      text,
		CreatedAt: e.clock.Now().UTC(),
	}
	var comments []Comment
	if err := e.store.Get(metadata.StoreComments, cleanRel, &comments); err != nil && err != metadata.ErrNotFound {
		return nil, err
	}
	if err := e.store.Set(metadata.StoreComments, cleanRel, append(comments, comment)); err != nil {
		return nil, err
	}
	return &comment, nil
}

// Comments returns the comments attached to a path, oldest first.
func (e *Engine) Comments(relPath string) ([]Comment, error) {
	cleanRel, _, err := e.resolve(relPath)
	if err != nil {
		return nil, err
	}
	var comments []Comment
	if err := e.store.Get(metadata.StoreComments, cleanRel, &comments); err != nil && err != metadata.ErrNotFound {
		return nil, err
	}
	return comments, nil
}

// Checksum returns the stored checksum record for a file.
func (e *Engine) Checksum(relPath string) (*ChecksumRecord, error) {
	cleanRel, _, err := e.resolve(relPath)
	if err != nil {
		return nil, err
	}
	var record ChecksumRecord
	if err := e.store.Get(metadata.StoreChecksums, cleanRel, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Downloads returns the recorded download count for a path.
func (e *Engine) Downloads(relPath string) (int, error) {
	cleanRel, _, err := e.resolve(relPath)
	if err != nil {
		return 0, err
	}
	var count int
	if err := e.store.Get(metadata.StoreDownloads, cleanRel, &count); err != nil && err != metadata.ErrNotFound {
		return 0, err
	}
	return count, nil
}

// requireExists resolves relPath and verifies a filesystem entry backs it.
// Metadata keys exist only while their item does.
func (e *Engine) requireExists(relPath string) (string, error) {
	cleanRel, fullPath, err := e.resolve(relPath)
	if err != nil {
		return "", err
	}
	if _, err := os.Lstat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return "", metadata.ErrNotFound
		}
		return "", fmt.Errorf("failed to stat %s: %w", cleanRel, err)
	}
	return cleanRel, nil
}
