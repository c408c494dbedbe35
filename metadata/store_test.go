package metadata

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func TestStoreGetSetDelete(t *testing.T) {
	s := newTestStore(t)

	if err := s.Get(StoreTags, "docs/a.txt", &[]string{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on absent key: got %v, want ErrNotFound", err)
	}

	want := []string{"work", "urgent"}
	if err := s.Set(StoreTags, "docs/a.txt", want); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got []string
	if err := s.Get(StoreTags, "docs/a.txt", &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != 2 || got[0] != "work" || got[1] != "urgent" {
		t.Errorf("Get() = %v, want %v", got, want)
	}

	s.Delete(StoreTags, "docs/a.txt")
	if s.Has(StoreTags, "docs/a.txt") {
		t.Error("key still present after Delete")
	}

	// Deleting again is a no-op.
	s.Delete(StoreTags, "docs/a.txt")
}

func TestStoreRekey(t *testing.T) {
	s := newTestStore(t)

	t.Run("moves value and drops old key", func(t *testing.T) {
		if err := s.Set(StoreTags, "old.txt", []string{"a"}); err != nil {
			t.Fatal(err)
		}
		s.Rekey(StoreTags, "old.txt", "new.txt")

		if s.Has(StoreTags, "old.txt") {
			t.Error("old key still present after Rekey")
		}
		var got []string
		if err := s.Get(StoreTags, "new.txt", &got); err != nil {
			t.Fatalf("Get(new) error = %v", err)
		}
		if len(got) != 1 || got[0] != "a" {
			t.Errorf("Get(new) = %v, want [a]", got)
		}
	})

	t.Run("last write wins at destination", func(t *testing.T) {
		if err := s.Set(StoreDownloads, "src", 3); err != nil {
			t.Fatal(err)
		}
		if err := s.Set(StoreDownloads, "dst", 99); err != nil {
			t.Fatal(err)
		}
		s.Rekey(StoreDownloads, "src", "dst")

		var n int
		if err := s.Get(StoreDownloads, "dst", &n); err != nil {
			t.Fatal(err)
		}
		if n != 3 {
			t.Errorf("destination = %d, want 3", n)
		}
	})

	t.Run("absent old key is a no-op", func(t *testing.T) {
		s.Rekey(StoreTags, "ghost", "elsewhere")
		if s.Has(StoreTags, "elsewhere") {
			t.Error("Rekey of absent key created a destination entry")
		}
	})
}

func TestStoreFlushAndReload(t *testing.T) {
	dir := t.TempDir()
	logger := zap.NewNop()

	s, err := NewStore(dir, logger)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(StoreChecksums, "a.txt", map[string]string{"sha256": "abc"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(StoreDownloads, "a.txt", 7); err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "checksums.json")); err != nil {
		t.Fatalf("checksums document not written: %v", err)
	}

	reloaded, err := NewStore(dir, logger)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	var n int
	if err := reloaded.Get(StoreDownloads, "a.txt", &n); err != nil {
		t.Fatalf("Get after reload error = %v", err)
	}
	if n != 7 {
		t.Errorf("download count after reload = %d, want 7", n)
	}
}

func TestStoreFlushOnlyWritesDirtyDocuments(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(StoreTags, "a", []string{"x"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "tags.json")
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	// Nothing dirty: flush must not resurrect the file.
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("clean document was rewritten by Flush")
	}
}

func TestStoreKeysSorted(t *testing.T) {
	s := newTestStore(t)
	for _, k := range []string{"c", "a", "b"} {
		if err := s.Set(StoreFavorites, k, true); err != nil {
			t.Fatal(err)
		}
	}
	keys := s.Keys(StoreFavorites)
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Errorf("Keys() = %v, want [a b c]", keys)
	}
}

func TestStoreUpdateIsAtomic(t *testing.T) {
	s := newTestStore(t)
	if err := s.Set(StoreDownloads, "x.txt", 0); err != nil {
		t.Fatal(err)
	}

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(StoreDownloads, "x.txt", func(raw json.RawMessage) (any, error) {
				var n int
				if err := json.Unmarshal(raw, &n); err != nil {
					return nil, err
				}
				return n + 1, nil
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	var n int
	if err := s.Get(StoreDownloads, "x.txt", &n); err != nil {
		t.Fatal(err)
	}
	if n != writers {
		t.Errorf("counter = %d after %d concurrent updates, want %d", n, writers, writers)
	}
}

func TestStoreUpdateAbsentKeyAndAbort(t *testing.T) {
	s := newTestStore(t)

	err := s.Update(StoreDownloads, "ghost", func(raw json.RawMessage) (any, error) {
		t.Error("fn called for absent key")
		return nil, nil
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update on absent key = %v, want ErrNotFound", err)
	}

	if err := s.Set(StoreDownloads, "x.txt", 7); err != nil {
		t.Fatal(err)
	}
	abort := errors.New("abort")
	if err := s.Update(StoreDownloads, "x.txt", func(json.RawMessage) (any, error) {
		return nil, abort
	}); !errors.Is(err, abort) {
		t.Errorf("Update abort = %v, want the fn error", err)
	}
	var n int
	if err := s.Get(StoreDownloads, "x.txt", &n); err != nil || n != 7 {
		t.Errorf("aborted Update changed the value: %d, %v", n, err)
	}
}
