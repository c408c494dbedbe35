package shares

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shelfd/shelfd/events"
	"github.com/shelfd/shelfd/metadata"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type seqTokens struct{ n int }

func (g *seqTokens) Token() (string, error) {
	g.n++
	return fmt.Sprintf("tok%04d", g.n), nil
}

func newTestManager(t *testing.T) (*Manager, string, *fakeClock) {
	t.Helper()
	root := t.TempDir()
	store, err := metadata.NewStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	mgr := NewManager(root, store, clock, &seqTokens{}, events.NoopSink{}, zap.NewNop())
	return mgr, root, clock
}

func writeTarget(t *testing.T, root, rel string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("shared"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func intPtr(n int) *int                { return &n }
func timePtr(ts time.Time) *time.Time { return &ts }

func TestCreateRequiresExistingTarget(t *testing.T) {
	mgr, root, _ := newTestManager(t)

	if _, err := mgr.Create("missing.txt", Policy{}, "alice"); !errors.Is(err, metadata.ErrNotFound) {
		t.Errorf("missing target: got %v, want ErrNotFound", err)
	}
	if _, err := mgr.Create("../etc/passwd", Policy{}, "alice"); !errors.Is(err, metadata.ErrPathInvalid) {
		t.Errorf("escape target: got %v, want ErrPathInvalid", err)
	}

	writeTarget(t, root, "doc.txt")
	link, err := mgr.Create("doc.txt", Policy{Password: "s3cret"}, "alice")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if link.Path != "doc.txt" || link.CreatedBy != "alice" {
		t.Errorf("link = %+v", link)
	}
	if link.PasswordHash == "" || link.PasswordHash == "s3cret" {
		t.Error("password stored as plaintext or not at all")
	}
}

func TestResolveForAccessEnforcementOrder(t *testing.T) {
	mgr, root, clock := newTestManager(t)
	writeTarget(t, root, "doc.txt")

	t.Run("unknown id", func(t *testing.T) {
		if _, err := mgr.ResolveForAccess("nope", "", true); !errors.Is(err, metadata.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("expired beats correct password", func(t *testing.T) {
		link, err := mgr.Create("doc.txt", Policy{
			Password:  "pw",
			ExpiresAt: timePtr(clock.now.Add(-time.Hour)),
		}, "alice")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := mgr.ResolveForAccess(link.ID, "pw", true); !errors.Is(err, ErrExpired) {
			t.Errorf("got %v, want ErrExpired", err)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		link, err := mgr.Create("doc.txt", Policy{Password: "right"}, "alice")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := mgr.ResolveForAccess(link.ID, "wrong", true); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("got %v, want ErrUnauthorized", err)
		}
		if _, err := mgr.ResolveForAccess(link.ID, "right", true); err != nil {
			t.Errorf("correct password rejected: %v", err)
		}
	})

	t.Run("upload-only forbids download but not upload", func(t *testing.T) {
		link, err := mgr.Create("doc.txt", Policy{UploadOnly: true}, "alice")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := mgr.ResolveForAccess(link.ID, "", true); !errors.Is(err, ErrUploadOnly) {
			t.Errorf("download: got %v, want ErrUploadOnly", err)
		}
		if _, err := mgr.ResolveForAccess(link.ID, "", false); err != nil {
			t.Errorf("upload: got %v, want nil", err)
		}
	})
}

func TestDownloadQuota(t *testing.T) {
	mgr, root, _ := newTestManager(t)
	writeTarget(t, root, "doc.txt")

	link, err := mgr.Create("doc.txt", Policy{MaxDownloads: intPtr(1)}, "alice")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := mgr.ResolveForAccess(link.ID, "", true); err != nil {
		t.Fatalf("first access denied: %v", err)
	}
	if err := mgr.RecordDownload(link.ID); err != nil {
		t.Fatalf("RecordDownload() error = %v", err)
	}

	if _, err := mgr.ResolveForAccess(link.ID, "", true); !errors.Is(err, ErrQuotaExhausted) {
		t.Errorf("second access: got %v, want ErrQuotaExhausted", err)
	}
}

func TestCollectExpiredAndDelete(t *testing.T) {
	mgr, root, clock := newTestManager(t)
	writeTarget(t, root, "doc.txt")

	expired, err := mgr.Create("doc.txt", Policy{ExpiresAt: timePtr(clock.now.Add(-time.Minute))}, "a")
	if err != nil {
		t.Fatal(err)
	}
	exhausted, err := mgr.Create("doc.txt", Policy{MaxDownloads: intPtr(0)}, "a")
	if err != nil {
		t.Fatal(err)
	}
	alive, err := mgr.Create("doc.txt", Policy{}, "a")
	if err != nil {
		t.Fatal(err)
	}

	dead := mgr.CollectExpired()
	if len(dead) != 2 {
		t.Fatalf("CollectExpired() = %v, want 2 ids", dead)
	}
	for _, id := range dead {
		if id == alive.ID {
			t.Error("live link collected")
		}
		mgr.Delete(id)
	}

	// Scan mutated nothing beyond our deletes; a second sweep is empty.
	if rest := mgr.CollectExpired(); len(rest) != 0 {
		t.Errorf("second sweep = %v, want empty", rest)
	}
	if _, err := mgr.Get(expired.ID); !errors.Is(err, metadata.ErrNotFound) {
		t.Error("expired link survived delete")
	}
	if _, err := mgr.Get(exhausted.ID); !errors.Is(err, metadata.ErrNotFound) {
		t.Error("exhausted link survived delete")
	}

	// Deleting an already-deleted id is a no-op.
	mgr.Delete(expired.ID)
}

func TestListNewestFirst(t *testing.T) {
	mgr, root, clock := newTestManager(t)
	writeTarget(t, root, "doc.txt")

	first, err := mgr.Create("doc.txt", Policy{}, "a")
	if err != nil {
		t.Fatal(err)
	}
	clock.now = clock.now.Add(time.Hour)
	second, err := mgr.Create("doc.txt", Policy{}, "a")
	if err != nil {
		t.Fatal(err)
	}

	links, err := mgr.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 2 || links[0].ID != second.ID || links[1].ID != first.ID {
		t.Errorf("List() order wrong")
	}
}

func TestRecordDownloadConcurrent(t *testing.T) {
	mgr, root, _ := newTestManager(t)
	writeTarget(t, root, "doc.txt")
	link, err := mgr.Create("doc.txt", Policy{}, "alice")
	if err != nil {
		t.Fatal(err)
	}

	const downloads = 64
	var wg sync.WaitGroup
	for i := 0; i < downloads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mgr.RecordDownload(link.ID); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, err := mgr.Get(link.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.DownloadCount != downloads {
		t.Errorf("DownloadCount = %d after %d concurrent downloads, want %d",
			got.DownloadCount, downloads, downloads)
	}
}

func TestRecordDownloadUnknownID(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	if err := mgr.RecordDownload("missing"); !errors.Is(err, metadata.ErrNotFound) {
		t.Errorf("RecordDownload(missing) = %v, want ErrNotFound", err)
	}
}
