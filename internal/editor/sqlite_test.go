package editor

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/scribehq/scribe/internal/db"
	"github.com/scribehq/scribe/internal/util/compression"
)

func newTestSQLiteStore(t *testing.T, compressor compression.Compressor) *SQLiteStore {
	t.Helper()

	database := db.NewSQLite(filepath.Join(t.TempDir(), "drafts.db"))
	if err := database.Init(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return NewSQLiteStore(database, compressor)
}

func TestSQLiteStore(t *testing.T) {
	t.Run("Round trip", func(t *testing.T) {
		testStoreRoundTrip(t, newTestSQLiteStore(t, compression.ZstdCompressor{}))
	})

	t.Run("Round trip with the gzip codec", func(t *testing.T) {
		testStoreRoundTrip(t, newTestSQLiteStore(t, compression.GzipCompressor{}))
	})

	t.Run("Corrupt blob is absent", func(t *testing.T) {
		store := newTestSQLiteStore(t, compression.ZstdCompressor{})
		ctx := ContextForNewPost()

		// Bypass the store and plant garbage that zstd cannot decompress.
		_, err := store.db.Exec(
			`INSERT INTO drafts (context, snapshot, saved_at) VALUES (?, ?, ?)`,
			ctx.Key(), []byte("not compressed"), time.Now().UTC(),
		)
		if err != nil {
			t.Fatal(err)
		}

		if _, ok := store.Load(ctx); ok {
			t.Error("Expected a corrupt draft to load as absent")
		}
		if store.Exists(ctx) {
			t.Error("Expected exists to report false for a corrupt draft")
		}
	})
}
