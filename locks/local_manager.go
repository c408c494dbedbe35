package locks

import (
	"context"
	"sync"
)

// LocalManager implements Manager with reference-counted in-memory locks.
// Suitable for the single-process consistency model shelfd targets.
type LocalManager struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	ch   chan struct{} // holds one token when the lock is free
	refs int
}

// NewLocalManager creates a new in-memory lock manager.
func NewLocalManager() *LocalManager {
	return &LocalManager{
		locks: make(map[string]*lockEntry),
	}
}

// Acquire blocks until the per-key lock is held or the context is done.
func (m *LocalManager) Acquire(ctx context.Context, key string) error {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		e.ch <- struct{}{}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case <-e.ch:
		return nil
	case <-ctx.Done():
		m.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
		return ctx.Err()
	}
}

// Release releases the lock for key. Must only be called after a successful
// Acquire.
func (m *LocalManager) Release(key string) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	e.ch <- struct{}{}
}

// Close drops all lock state.
func (m *LocalManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks = make(map[string]*lockEntry)
	return nil
}
