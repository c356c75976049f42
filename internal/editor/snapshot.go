// Package editor implements the draft autosave engine: cursor-aware text
// mutations, fingerprint-based change detection, per-context draft snapshot
// stores, the autosave scheduler and the restore-or-discard recovery flow.
package editor

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribehq/scribe/internal/model"
	"github.com/scribehq/scribe/internal/util"
)

var editorLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	editorLogger = l
}

// Context identifies which logical document an editing session targets:
// a brand-new post, or an existing post by slug. Exactly one snapshot may
// exist per context at a time.
type Context string

func ContextForNewPost() Context {
	return "new"
}

func ContextForPost(slug model.Slug) Context {
	return Context("post:" + string(slug))
}

// Key is the storage key the context maps to. Derivable purely from the
// context identifier so switching contexts never collides keys.
func (c Context) Key() string {
	return "draft-" + string(c)
}

// IsNewPost reports whether the context edits a document that has no remote
// counterpart yet.
func (c Context) IsNewPost() bool {
	return !strings.HasPrefix(string(c), "post:")
}

// Fields are the editable fields of a post as reported by the editing surface.
type Fields struct {
	Title       string   `json:"title"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	Draft       bool     `json:"draft"`
	Tags        []string `json:"tags"`
	Content     string   `json:"content"`
}

// Fingerprint returns a deterministic digest of the fields. Tags are compared
// order-insensitively: the digest is computed over a sorted copy while the
// fields themselves keep the user's ordering.
func (f Fields) Fingerprint() string {
	var sb strings.Builder
	writeLenPrefixed(&sb, f.Title)
	writeLenPrefixed(&sb, f.Slug)
	writeLenPrefixed(&sb, f.Description)
	writeLenPrefixed(&sb, f.Date)
	if f.Draft {
		sb.WriteString("d1")
	} else {
		sb.WriteString("d0")
	}

	sorted := slices.Clone(f.Tags)
	slices.Sort(sorted)
	for _, tag := range sorted {
		writeLenPrefixed(&sb, tag)
	}
	writeLenPrefixed(&sb, f.Content)

	return util.ContentHashString(sb.String())
}

func writeLenPrefixed(sb *strings.Builder, s string) {
	sb.WriteString(strconv.Itoa(len(s)))
	sb.WriteString(":")
	sb.WriteString(s)
}

// SnapshotSchemaVersion tags persisted snapshots so a future format change is
// distinguishable from plain corruption.
const SnapshotSchemaVersion = 1

// Snapshot is one immutable persisted copy of a post's editable fields plus
// the persistence write time. SavedAt is set by the store, never the caller.
type Snapshot struct {
	SchemaVersion int `json:"schema_version"`
	Fields
	SavedAt time.Time `json:"saved_at"`
}

func newSnapshot(fields Fields) Snapshot {
	return Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		Fields:        cloneFields(fields),
		SavedAt:       time.Now().UTC(),
	}
}

func cloneFields(f Fields) Fields {
	f.Tags = slices.Clone(f.Tags)
	return f
}
