package editor

import (
	"encoding/json"
	"fmt"

	"github.com/scribehq/scribe/internal/db"
	"github.com/scribehq/scribe/internal/util/compression"
)

// SQLiteStore keeps snapshots in the application database, compressed with
// the configured codec (zstd by default, see compression.ForName).
type SQLiteStore struct {
	db         db.DB
	compressor compression.Compressor
}

func NewSQLiteStore(database db.DB, compressor compression.Compressor) *SQLiteStore {
	return &SQLiteStore{
		db:         database,
		compressor: compressor,
	}
}

func (s *SQLiteStore) Save(ctx Context, fields Fields) (Snapshot, error) {
	snap := newSnapshot(fields)

	data, err := json.Marshal(snap)
	if err != nil {
		return Snapshot{}, fmt.Errorf("error encoding snapshot: %w", err)
	}

	compressed, err := s.compressor.Compress(data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("error compressing snapshot: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO drafts (context, snapshot, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(context) DO UPDATE SET snapshot = excluded.snapshot, saved_at = excluded.saved_at`,
		ctx.Key(), compressed, snap.SavedAt,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("error saving draft: %w", err)
	}

	return snap, nil
}

func (s *SQLiteStore) Load(ctx Context) (Snapshot, bool) {
	var compressed []byte
	row := s.db.QueryRow(`SELECT snapshot FROM drafts WHERE context = ?`, ctx.Key())
	if err := row.Scan(&compressed); err != nil {
		return Snapshot{}, false
	}

	data, err := s.compressor.Decompress(compressed)
	if err != nil {
		editorLogger.Debug().Err(err).Str("context", string(ctx)).Msg("Discarding undecompressable draft snapshot")
		return Snapshot{}, false
	}

	return decodeSnapshot(data)
}

func (s *SQLiteStore) Exists(ctx Context) bool {
	_, ok := s.Load(ctx)
	return ok
}

func (s *SQLiteStore) Clear(ctx Context) error {
	_, err := s.db.Exec(`DELETE FROM drafts WHERE context = ?`, ctx.Key())
	if err != nil {
		return fmt.Errorf("error clearing draft: %w", err)
	}
	return nil
}
