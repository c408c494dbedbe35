package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shelfd/shelfd/events"
	"github.com/shelfd/shelfd/locks"
	"github.com/shelfd/shelfd/metadata"
	"github.com/shelfd/shelfd/trash"
	"github.com/shelfd/shelfd/versions"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type seqIDs struct{ n int }

func (g *seqIDs) New() string {
	g.n++
	return fmt.Sprintf("id-%04d", g.n)
}

type fixture struct {
	engine   *Engine
	store    *metadata.Store
	trash    *trash.Manager
	versions *versions.Manager
	root     string
	clock    *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	store, err := metadata.NewStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	ids := &seqIDs{}
	migrator := metadata.NewMigrator(store, zap.NewNop())

	versionMgr, err := versions.NewManager(
		root, filepath.Join(t.TempDir(), "blobs"),
		store, clock, ids, 0, 0, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	trashMgr, err := trash.NewManager(
		root, filepath.Join(t.TempDir(), "quarantine"),
		store, migrator, versionMgr, clock, ids, events.NoopSink{}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	lockMgr := locks.NewLocalManager()
	t.Cleanup(func() { lockMgr.Close() })

	engine := NewEngine(root, store, migrator, trashMgr, versionMgr, lockMgr, events.NoopSink{}, clock, zap.NewNop())
	return &fixture{
		engine:   engine,
		store:    store,
		trash:    trashMgr,
		versions: versionMgr,
		root:     root,
		clock:    clock,
	}
}

func (f *fixture) upload(t *testing.T, rel, content string) *ChecksumRecord {
	t.Helper()
	record, err := f.engine.Upload(context.Background(), rel, strings.NewReader(content))
	if err != nil {
		t.Fatalf("Upload(%q) failed: %v", rel, err)
	}
	return record
}

func (f *fixture) download(t *testing.T, rel string) string {
	t.Helper()
	reader, _, err := f.engine.Download(context.Background(), rel)
	if err != nil {
		t.Fatalf("Download(%q) failed: %v", rel, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	f := newFixture(t)

	content := "hello shelfd"
	record := f.upload(t, "docs/note.txt", content)

	sum := sha256.Sum256([]byte(content))
	if record.SHA256 != hex.EncodeToString(sum[:]) {
		t.Errorf("checksum = %s, want sha256 of content", record.SHA256)
	}
	if record.SizeBytes != int64(len(content)) {
		t.Errorf("size = %d, want %d", record.SizeBytes, len(content))
	}

	if got := f.download(t, "docs/note.txt"); got != content {
		t.Errorf("downloaded %q, want %q", got, content)
	}

	stored, err := f.engine.Checksum("docs/note.txt")
	if err != nil {
		t.Fatal(err)
	}
	if stored.SHA256 != record.SHA256 {
		t.Error("stored checksum does not match upload result")
	}
}

func TestDownloadCountsEachAccess(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "report.pdf", "bytes")

	f.download(t, "report.pdf")
	f.download(t, "report.pdf")

	count, err := f.engine.Downloads("report.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("download count = %d, want 2", count)
	}
}

func TestUploadSnapshotsPreviousContent(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "draft.md", "first")
	f.upload(t, "draft.md", "second")

	entries, err := f.versions.List("draft.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d versions, want 1", len(entries))
	}
	if entries[0].SizeBytes != int64(len("first")) {
		t.Errorf("snapshot size = %d, want %d", entries[0].SizeBytes, len("first"))
	}
}

func TestUploadOntoDirectoryConflicts(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Mkdir("docs"); err != nil {
		t.Fatal(err)
	}

	_, err := f.engine.Upload(context.Background(), "docs", strings.NewReader("x"))
	if !errors.Is(err, metadata.ErrConflict) {
		t.Errorf("Upload onto directory = %v, want ErrConflict", err)
	}
}

func TestUploadRejectsEscapingPath(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Upload(context.Background(), "../outside.txt", strings.NewReader("x"))
	if !errors.Is(err, metadata.ErrPathInvalid) {
		t.Errorf("Upload escaping path = %v, want ErrPathInvalid", err)
	}
}

func TestRestoreVersionRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "config.yaml", "original")
	f.upload(t, "config.yaml", "edited")

	entries, err := f.versions.List("config.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d versions, want 1", len(entries))
	}

	if err := f.engine.RestoreVersion(context.Background(), "config.yaml", entries[0].ID); err != nil {
		t.Fatalf("RestoreVersion failed: %v", err)
	}

	if got := f.download(t, "config.yaml"); got != "original" {
		t.Errorf("restored content = %q, want %q", got, "original")
	}
}

func TestMoveCarriesMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, "old/report.pdf", "data")

	if err := f.engine.AddTag(ctx, "old/report.pdf", "finance"); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.SetFavorite("old/report.pdf", true); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.AddComment(ctx, "old/report.pdf", "ann", "please review"); err != nil {
		t.Fatal(err)
	}

	if err := f.engine.Move(ctx, "old/report.pdf", "new/report.pdf"); err != nil {
		t.Fatalf("Move failed: %v", err)
	}

	if got := f.download(t, "new/report.pdf"); got != "data" {
		t.Errorf("moved content = %q, want %q", got, "data")
	}

	tags, err := f.engine.Tags("new/report.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 1 || tags[0] != "finance" {
		t.Errorf("tags after move = %v, want [finance]", tags)
	}

	oldTags, err := f.engine.Tags("old/report.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if len(oldTags) != 0 {
		t.Errorf("old path still has tags %v after move", oldTags)
	}

	favorites := f.engine.Favorites()
	if len(favorites) != 1 || favorites[0] != "new/report.pdf" {
		t.Errorf("favorites after move = %v, want [new/report.pdf]", favorites)
	}

	comments, err := f.engine.Comments("new/report.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 1 || comments[0].Text != "please review" {
		t.Errorf("comments after move = %v", comments)
	}
}

func TestMoveDirectoryCarriesDescendantMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, "photos/trip/a.jpg", "jpeg")

	if err := f.engine.AddTag(ctx, "photos/trip/a.jpg", "vacation"); err != nil {
		t.Fatal(err)
	}

	if err := f.engine.Move(ctx, "photos", "pictures"); err != nil {
		t.Fatalf("Move failed: %v", err)
	}

	tags, err := f.engine.Tags("pictures/trip/a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 1 || tags[0] != "vacation" {
		t.Errorf("descendant tags after directory move = %v, want [vacation]", tags)
	}
}

func TestMoveIntoOccupiedDestinationConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, "a.txt", "a")
	f.upload(t, "b.txt", "b")

	err := f.engine.Move(ctx, "a.txt", "b.txt")
	if !errors.Is(err, metadata.ErrConflict) {
		t.Errorf("Move onto occupied destination = %v, want ErrConflict", err)
	}
}

func TestRenameRejectsSeparators(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "a.txt", "a")

	if _, err := f.engine.Rename(context.Background(), "a.txt", "sub/dir.txt"); !errors.Is(err, metadata.ErrPathInvalid) {
		t.Errorf("Rename with separator = %v, want ErrPathInvalid", err)
	}
	if _, err := f.engine.Rename(context.Background(), "a.txt", ".."); !errors.Is(err, metadata.ErrPathInvalid) {
		t.Errorf("Rename to .. = %v, want ErrPathInvalid", err)
	}
}

func TestListOrdersDirectoriesFirst(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "b.txt", "b")
	f.upload(t, "a.txt", "a")
	if err := f.engine.Mkdir("zdir"); err != nil {
		t.Fatal(err)
	}

	items, err := f.engine.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if !items[0].IsDir || items[0].Name != "zdir" {
		t.Errorf("first item = %+v, want directory zdir", items[0])
	}
	if items[1].Name != "a.txt" || items[2].Name != "b.txt" {
		t.Errorf("files not sorted by name: %s, %s", items[1].Name, items[2].Name)
	}
}

func TestTrashLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, "x.txt", "content")
	if err := f.engine.AddTag(ctx, "x.txt", "keep"); err != nil {
		t.Fatal(err)
	}

	entry, err := f.engine.SoftDelete(ctx, "x.txt")
	if err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.root, "x.txt")); !os.IsNotExist(err) {
		t.Error("file still present after soft delete")
	}

	restoredPath, err := f.trash.Restore(entry.ID)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if restoredPath != "x.txt" {
		t.Errorf("restored to %q, want original path", restoredPath)
	}
	if got := f.download(t, "x.txt"); got != "content" {
		t.Errorf("restored content = %q", got)
	}
	tags, err := f.engine.Tags("x.txt")
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 1 || tags[0] != "keep" {
		t.Errorf("tags after restore = %v, want [keep]", tags)
	}

	// Delete again, then expire the retention window.
	if _, err = f.engine.SoftDelete(ctx, "x.txt"); err != nil {
		t.Fatal(err)
	}
	f.clock.now = f.clock.now.Add(31 * 24 * time.Hour)

	purged, err := f.trash.PurgeExpired(30 * 24 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Errorf("purged %d entries, want 1", purged)
	}

	entries, err := f.trash.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("trash not empty after purge: %d entries", len(entries))
	}
	if tags, _ := f.engine.Tags("x.txt"); len(tags) != 0 {
		t.Errorf("tags survived purge: %v", tags)
	}
}

func TestSoftDeleteOfMissingPath(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.SoftDelete(context.Background(), "ghost.txt")
	if !errors.Is(err, metadata.ErrNotFound) {
		t.Errorf("SoftDelete missing path = %v, want ErrNotFound", err)
	}
}
