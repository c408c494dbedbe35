// Package locks provides in-process serialization of filesystem-plus-
// metadata units. Each unit locks the relative paths it touches so two
// operations on the same item never interleave partially.
package locks

import "context"

// Manager serializes operations per key.
type Manager interface {
	// Acquire blocks until the lock for key is held or ctx is done.
	Acquire(ctx context.Context, key string) error

	// Release releases a previously acquired lock for the given key.
	Release(key string)

	// Close releases all resources held by the manager.
	Close() error
}
