package editor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// FSStore writes one JSON snapshot file per context. Writes go through a
// temp file and rename so a crash mid-write never leaves a torn snapshot.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) *FSStore {
	return &FSStore{dir: dir}
}

func (s *FSStore) path(ctx Context) string {
	name := ctx.Key()
	// Context identifiers may contain characters that are awkward in
	// filenames; the key only has to stay stable and collision-free.
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		}
		return '_'
	}, name)
	return filepath.Join(s.dir, name+".json")
}

func (s *FSStore) Save(ctx Context, fields Fields) (Snapshot, error) {
	snap := newSnapshot(fields)

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return Snapshot{}, err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return Snapshot{}, err
	}

	path := s.path(ctx)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return Snapshot{}, err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return Snapshot{}, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return Snapshot{}, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return Snapshot{}, err
	}

	return snap, nil
}

func (s *FSStore) Load(ctx Context) (Snapshot, bool) {
	data, err := os.ReadFile(s.path(ctx))
	if err != nil {
		return Snapshot{}, false
	}
	return decodeSnapshot(data)
}

func (s *FSStore) Exists(ctx Context) bool {
	_, ok := s.Load(ctx)
	return ok
}

func (s *FSStore) Clear(ctx Context) error {
	err := os.Remove(s.path(ctx))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// decodeSnapshot parses persisted snapshot bytes. Anything unparseable, or
// carrying an unknown schema version, is reported absent: corrupt drafts are
// self-healing from the consumer's point of view.
func decodeSnapshot(data []byte) (Snapshot, bool) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		editorLogger.Debug().Err(err).Msg("Discarding unparseable draft snapshot")
		return Snapshot{}, false
	}
	if snap.SchemaVersion != SnapshotSchemaVersion {
		editorLogger.Debug().
			Int("schema_version", snap.SchemaVersion).
			Msg("Discarding draft snapshot with unknown schema version")
		return Snapshot{}, false
	}
	return snap, true
}
