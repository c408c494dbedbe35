// Package metadata implements the flat-document metadata layer for shelfd.
// Each concern (tags, favorites, checksums, comments, download counts, the
// trash index, the version index, share links) lives in one JSON document
// keyed by relative path or opaque id, held fully in memory and written back
// to disk on a fixed interval.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shelfd/shelfd/metrics"
)

// Well-known store names. Callers may open additional stores; these are the
// ones the core wires up.
const (
	StoreTags      = "tags"
	StoreFavorites = "favorites"
	StoreChecksums = "checksums"
	StoreComments  = "comments"
	StoreDownloads = "downloads"
	StoreVersions  = "versions"
	StoreTrash     = "trash"
	StoreShares    = "shares"
)

// Store is a collection of named JSON documents with per-document locking.
// Writes are durable only at flush granularity: a crash loses at most one
// flush interval of metadata, never file bytes.
type Store struct {
	dir    string
	logger *zap.Logger

	mu   sync.Mutex // guards the docs map itself
	docs map[string]*document
}

type document struct {
	mu      sync.Mutex
	entries map[string]json.RawMessage
	dirty   bool
}

// NewStore opens the document store rooted at dir, loading any existing
// documents into memory.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create metadata dir %s: %w", dir, err)
	}

	s := &Store{
		dir:    dir,
		logger: logger,
		docs:   make(map[string]*document),
	}

	names, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan metadata dir: %w", err)
	}
	for _, path := range names {
		name := strings.TrimSuffix(filepath.Base(path), ".json")
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read metadata document %s: %w", name, err)
		}
		entries := make(map[string]json.RawMessage)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &entries); err != nil {
				return nil, fmt.Errorf("failed to parse metadata document %s: %w", name, err)
			}
		}
		s.docs[name] = &document{entries: entries}
	}

	logger.Info("Metadata store loaded",
		zap.String("dir", dir),
		zap.Int("documents", len(s.docs)))

	return s, nil
}

func (s *Store) doc(name string) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[name]
	if !ok {
		d = &document{entries: make(map[string]json.RawMessage)}
		s.docs[name] = d
	}
	return d
}

// Get unmarshals the value stored under key into out. Returns ErrNotFound
// when the key is absent.
func (s *Store) Get(storeName, key string, out any) error {
	d := s.doc(storeName)
	d.mu.Lock()
	raw, ok := d.entries[key]
	d.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s[%s]: %w", storeName, key, err)
	}
	return nil
}

// Has reports whether a key exists in a store.
func (s *Store) Has(storeName, key string) bool {
	d := s.doc(storeName)
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[key]
	return ok
}

// Set stores a value under key, marking the document dirty for the next
// flush.
func (s *Store) Set(storeName, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s[%s]: %w", storeName, key, err)
	}
	d := s.doc(storeName)
	d.mu.Lock()
	d.entries[key] = raw
	d.dirty = true
	d.mu.Unlock()
	return nil
}

// Update applies fn to the value stored under key and writes the result
// back, all while holding the document lock, so the whole
// read-modify-write is one atomic step and concurrent updates never lose
// increments. fn receives the current raw value; returning an error aborts
// without writing. An absent key returns ErrNotFound.
func (s *Store) Update(storeName, key string, fn func(raw json.RawMessage) (any, error)) error {
	d := s.doc(storeName)
	d.mu.Lock()
	defer d.mu.Unlock()

	raw, ok := d.entries[key]
	if !ok {
		return ErrNotFound
	}
	value, err := fn(raw)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s[%s]: %w", storeName, key, err)
	}
	d.entries[key] = encoded
	d.dirty = true
	return nil
}

// Delete drops a key entirely. Deleting an absent key is a no-op.
func (s *Store) Delete(storeName, key string) {
	d := s.doc(storeName)
	d.mu.Lock()
	if _, ok := d.entries[key]; ok {
		delete(d.entries, key)
		d.dirty = true
	}
	d.mu.Unlock()
}

// Rekey moves the value at oldKey to newKey. Any existing value at newKey is
// overwritten (last write wins); an absent oldKey is a no-op. The whole move
// happens under the document lock so a concurrent reader never observes the
// value under both keys or neither.
func (s *Store) Rekey(storeName, oldKey, newKey string) {
	d := s.doc(storeName)
	d.mu.Lock()
	if raw, ok := d.entries[oldKey]; ok {
		d.entries[newKey] = raw
		delete(d.entries, oldKey)
		d.dirty = true
	}
	d.mu.Unlock()
}

// Keys returns all keys of a store, sorted.
func (s *Store) Keys(storeName string) []string {
	d := s.doc(storeName)
	d.mu.Lock()
	keys := make([]string, 0, len(d.entries))
	for k := range d.entries {
		keys = append(keys, k)
	}
	d.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Flush writes every dirty document to disk. Each document is written to a
// temp file and renamed into place so readers never see a torn document. A
// failed flush leaves the document dirty; the next interval retries.
func (s *Store) Flush() error {
	s.mu.Lock()
	snapshot := make(map[string]*document, len(s.docs))
	for name, d := range s.docs {
		snapshot[name] = d
	}
	s.mu.Unlock()

	var firstErr error
	for name, d := range snapshot {
		d.mu.Lock()
		if !d.dirty {
			d.mu.Unlock()
			continue
		}
		data, err := json.MarshalIndent(d.entries, "", "  ")
		if err != nil {
			d.mu.Unlock()
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to encode document %s: %w", name, err)
			}
			continue
		}
		d.dirty = false
		d.mu.Unlock()

		if err := writeAtomic(filepath.Join(s.dir, name+".json"), data); err != nil {
			// Re-mark dirty so the write is retried on the next flush.
			d.mu.Lock()
			d.dirty = true
			d.mu.Unlock()
			metrics.MetadataFlushesTotal.WithLabelValues("failure").Inc()
			s.logger.Error("Failed to flush metadata document",
				zap.String("document", name),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		metrics.MetadataFlushesTotal.WithLabelValues("success").Inc()
	}
	return firstErr
}

// StartFlushWorker starts a goroutine flushing dirty documents every
// interval until ctx is cancelled. A final flush runs on shutdown.
func (s *Store) StartFlushWorker(ctx context.Context, interval time.Duration) {
	go func() {
		s.logger.Info("Starting metadata flush worker",
			zap.Duration("interval", interval))

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.Flush(); err != nil {
					s.logger.Error("Metadata flush failed, will retry next interval", zap.Error(err))
				}
			case <-ctx.Done():
				if err := s.Flush(); err != nil {
					s.logger.Error("Final metadata flush failed", zap.Error(err))
				}
				s.logger.Info("Metadata flush worker shutting down")
				return
			}
		}
	}()
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".flush-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
