package metadata

import (
	"strings"

	"go.uber.org/zap"
)

// migratedStores are the keyed documents whose entries follow an item when
// it is renamed or moved. The favorites set is handled alongside: rekeying
// replaces the old member with the new one in place.
var migratedStores = []string{
	StoreTags,
	StoreChecksums,
	StoreComments,
	StoreVersions,
	StoreDownloads,
	StoreFavorites,
}

// Migrator re-keys metadata entries when an item's relative path changes.
// It is invoked immediately after a successful filesystem rename and before
// the response is returned, so a client reading metadata for the new path
// never observes a gap. It never touches the filesystem.
type Migrator struct {
	store  *Store
	logger *zap.Logger
}

// NewMigrator creates a Migrator over the given store.
func NewMigrator(store *Store, logger *zap.Logger) *Migrator {
	return &Migrator{store: store, logger: logger}
}

// Migrate moves every metadata entry from oldPath to newPath. Migrating a
// path with no entries is a successful no-op, which makes the operation
// idempotent.
func (m *Migrator) Migrate(oldPath, newPath string) {
	if oldPath == newPath {
		return
	}
	for _, name := range migratedStores {
		m.store.Rekey(name, oldPath, newPath)
	}
	m.logger.Debug("Migrated metadata",
		zap.String("old_path", oldPath),
		zap.String("new_path", newPath))
}

// MigrateTree migrates oldPath itself plus every entry keyed under the
// oldPath/ prefix; used when a directory moves so its descendants' metadata
// follows.
func (m *Migrator) MigrateTree(oldPath, newPath string) {
	if oldPath == newPath {
		return
	}
	m.Migrate(oldPath, newPath)

	prefix := oldPath + "/"
	for _, name := range migratedStores {
		for _, key := range m.store.Keys(name) {
			if strings.HasPrefix(key, prefix) {
				m.store.Rekey(name, key, newPath+"/"+key[len(prefix):])
			}
		}
	}
}

// Drop removes every metadata entry for a path; used when an item is
// permanently deleted so no orphaned entries survive a purge.
func (m *Migrator) Drop(path string) {
	for _, name := range migratedStores {
		m.store.Delete(name, path)
	}
}

// DropTree drops path itself plus every entry keyed under the path/ prefix;
// used when a directory is purged so descendant metadata does not outlive
// its bytes.
func (m *Migrator) DropTree(path string) {
	m.Drop(path)

	prefix := path + "/"
	for _, name := range migratedStores {
		for _, key := range m.store.Keys(name) {
			if strings.HasPrefix(key, prefix) {
				m.store.Delete(name, key)
			}
		}
	}
}
