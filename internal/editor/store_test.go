package editor

import (
	"os"
	"path/filepath"
	"testing"
)

func testStoreRoundTrip(t *testing.T, store Store) {
	t.Helper()

	ctx := ContextForPost("my-post")
	fields := Fields{
		Title:   "My Post",
		Slug:    "my-post",
		Date:    "2026-08-25",
		Tags:    []string{"go", "testing"},
		Content: "Hello world",
	}

	if store.Exists(ctx) {
		t.Fatal("Expected no draft before the first save")
	}
	if _, ok := store.Load(ctx); ok {
		t.Fatal("Expected load to report absent before the first save")
	}

	snap, err := store.Save(ctx, fields)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if snap.SchemaVersion != SnapshotSchemaVersion {
		t.Errorf("Expected schema version %d, got %d", SnapshotSchemaVersion, snap.SchemaVersion)
	}
	if snap.SavedAt.IsZero() {
		t.Error("Expected the store to stamp SavedAt")
	}

	loaded, ok := store.Load(ctx)
	if !ok {
		t.Fatal("Expected load to find the saved draft")
	}
	if loaded.Title != fields.Title || loaded.Content != fields.Content {
		t.Errorf("Loaded snapshot differs from saved fields: %+v", loaded.Fields)
	}
	if len(loaded.Tags) != 2 || loaded.Tags[0] != "go" {
		t.Errorf("Expected tags to round-trip, got %v", loaded.Tags)
	}
	if !store.Exists(ctx) {
		t.Error("Expected exists to report true after save")
	}

	// Contexts do not leak into one another.
	if store.Exists(ContextForNewPost()) {
		t.Error("Expected the new-post context to have no draft")
	}

	// A second save overwrites: exactly one snapshot per context.
	fields.Content = "Hello again"
	if _, err := store.Save(ctx, fields); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}
	loaded, ok = store.Load(ctx)
	if !ok || loaded.Content != "Hello again" {
		t.Errorf("Expected the second save to overwrite, got %+v ok=%v", loaded.Fields, ok)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if store.Exists(ctx) {
		t.Error("Expected no draft after clear")
	}

	// Clearing an absent draft is not an error.
	if err := store.Clear(ctx); err != nil {
		t.Errorf("Expected redundant clear to succeed, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	testStoreRoundTrip(t, NewMemoryStore())
}

func TestFSStore(t *testing.T) {
	t.Run("Round trip", func(t *testing.T) {
		testStoreRoundTrip(t, NewFSStore(t.TempDir()))
	})

	t.Run("Corrupt draft is absent", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFSStore(dir)
		ctx := ContextForNewPost()

		if err := os.WriteFile(store.path(ctx), []byte("{not json"), 0o600); err != nil {
			t.Fatal(err)
		}

		if _, ok := store.Load(ctx); ok {
			t.Error("Expected a corrupt draft to load as absent")
		}
		if store.Exists(ctx) {
			t.Error("Expected exists to report false for a corrupt draft")
		}
	})

	t.Run("Unknown schema version is absent", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFSStore(dir)
		ctx := ContextForNewPost()

		data := []byte(`{"schema_version":99,"title":"x","saved_at":"2026-08-25T00:00:00Z"}`)
		if err := os.WriteFile(store.path(ctx), data, 0o600); err != nil {
			t.Fatal(err)
		}

		if _, ok := store.Load(ctx); ok {
			t.Error("Expected an unknown schema version to load as absent")
		}
	})

	t.Run("No temp files left behind", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFSStore(dir)

		if _, err := store.Save(ContextForPost("p"), Fields{Title: "t"}); err != nil {
			t.Fatal(err)
		}

		matches, err := filepath.Glob(filepath.Join(dir, "*.tmp-*"))
		if err != nil {
			t.Fatal(err)
		}
		if len(matches) != 0 {
			t.Errorf("Expected no temp files after save, found %v", matches)
		}
	})
}

func TestContextKeys(t *testing.T) {
	t.Run("New post context", func(t *testing.T) {
		ctx := ContextForNewPost()
		if ctx.Key() != "draft-new" {
			t.Errorf("Expected key draft-new, got %s", ctx.Key())
		}
		if !ctx.IsNewPost() {
			t.Error("Expected new-post context to report IsNewPost")
		}
	})

	t.Run("Existing post context", func(t *testing.T) {
		ctx := ContextForPost("my-slug")
		if ctx.Key() != "draft-post:my-slug" {
			t.Errorf("Expected key draft-post:my-slug, got %s", ctx.Key())
		}
		if ctx.IsNewPost() {
			t.Error("Expected post context not to report IsNewPost")
		}
	})
}
