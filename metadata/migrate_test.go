package metadata

import (
	"testing"

	"go.uber.org/zap"
)

func TestMigratorMigrate(t *testing.T) {
	s := newTestStore(t)
	m := NewMigrator(s, zap.NewNop())

	t.Run("moves tags and favorite flag, leaves nothing behind", func(t *testing.T) {
		if err := s.Set(StoreTags, "old/report.pdf", []string{"a", "b"}); err != nil {
			t.Fatal(err)
		}
		if err := s.Set(StoreFavorites, "old/report.pdf", true); err != nil {
			t.Fatal(err)
		}

		m.Migrate("old/report.pdf", "new/report.pdf")

		var tags []string
		if err := s.Get(StoreTags, "new/report.pdf", &tags); err != nil {
			t.Fatalf("tags not migrated: %v", err)
		}
		if len(tags) != 2 || tags[0] != "a" || tags[1] != "b" {
			t.Errorf("tags = %v, want [a b]", tags)
		}
		if !s.Has(StoreFavorites, "new/report.pdf") {
			t.Error("favorite flag not migrated")
		}
		if s.Has(StoreTags, "old/report.pdf") || s.Has(StoreFavorites, "old/report.pdf") {
			t.Error("entries remain under the old path")
		}
	})

	t.Run("no metadata is a successful no-op", func(t *testing.T) {
		m.Migrate("nothing/here.txt", "still/nothing.txt")
		if s.Has(StoreTags, "still/nothing.txt") {
			t.Error("no-op migrate created entries")
		}
	})

	t.Run("same path is a no-op", func(t *testing.T) {
		if err := s.Set(StoreDownloads, "same.txt", 4); err != nil {
			t.Fatal(err)
		}
		m.Migrate("same.txt", "same.txt")
		var n int
		if err := s.Get(StoreDownloads, "same.txt", &n); err != nil || n != 4 {
			t.Errorf("value disturbed by self-migrate: %d, %v", n, err)
		}
	})
}

func TestMigratorMigrateTree(t *testing.T) {
	s := newTestStore(t)
	m := NewMigrator(s, zap.NewNop())

	if err := s.Set(StoreTags, "photos", []string{"album"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(StoreTags, "photos/2024/trip.jpg", []string{"travel"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(StoreChecksums, "photos/2024/trip.jpg", map[string]string{"sha256": "x"}); err != nil {
		t.Fatal(err)
	}
	// A sibling that merely shares the prefix string must not move.
	if err := s.Set(StoreTags, "photos-old/a.jpg", []string{"keep"}); err != nil {
		t.Fatal(err)
	}

	m.MigrateTree("photos", "pictures")

	for _, key := range []string{"pictures", "pictures/2024/trip.jpg"} {
		if !s.Has(StoreTags, key) {
			t.Errorf("expected tags under %q after tree migrate", key)
		}
	}
	if !s.Has(StoreChecksums, "pictures/2024/trip.jpg") {
		t.Error("checksum did not follow the tree migrate")
	}
	if s.Has(StoreTags, "photos") || s.Has(StoreTags, "photos/2024/trip.jpg") {
		t.Error("entries remain under the old tree")
	}
	if !s.Has(StoreTags, "photos-old/a.jpg") {
		t.Error("prefix-sibling entry was moved")
	}
}

func TestMigratorDrop(t *testing.T) {
	s := newTestStore(t)
	m := NewMigrator(s, zap.NewNop())

	if err := s.Set(StoreTags, "x.txt", []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(StoreDownloads, "x.txt", 12); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(StoreFavorites, "x.txt", true); err != nil {
		t.Fatal(err)
	}

	m.Drop("x.txt")

	for _, name := range []string{StoreTags, StoreDownloads, StoreFavorites} {
		if s.Has(name, "x.txt") {
			t.Errorf("entry in %s survived Drop", name)
		}
	}
}

func TestMigratorDropTree(t *testing.T) {
	s := newTestStore(t)
	m := NewMigrator(s, zap.NewNop())

	if err := s.Set(StoreTags, "docs", []string{"work"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(StoreTags, "docs/a.txt", []string{"finance"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(StoreDownloads, "docs/sub/b.txt", 3); err != nil {
		t.Fatal(err)
	}
	// Prefix sibling must survive: docs-old is not under docs/.
	if err := s.Set(StoreTags, "docs-old", []string{"keep"}); err != nil {
		t.Fatal(err)
	}

	m.DropTree("docs")

	for _, key := range []string{"docs", "docs/a.txt"} {
		if s.Has(StoreTags, key) {
			t.Errorf("tags for %s survived DropTree", key)
		}
	}
	if s.Has(StoreDownloads, "docs/sub/b.txt") {
		t.Error("download counter of nested descendant survived DropTree")
	}
	if !s.Has(StoreTags, "docs-old") {
		t.Error("prefix sibling dropped by DropTree")
	}
}
