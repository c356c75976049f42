package editor

import "strings"

// Selection is a half-open byte range into the content string.
// Start == End is a collapsed cursor.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Selection) clamp(n int) Selection {
	if s.Start < 0 {
		s.Start = 0
	}
	if s.Start > n {
		s.Start = n
	}
	if s.End < s.Start {
		s.End = s.Start
	}
	if s.End > n {
		s.End = n
	}
	return s
}

// WrapSelection wraps the selected text with prefix and suffix. With a
// non-empty selection the cursor collapses to the point just past the
// closing suffix. With an empty selection the placeholder is inserted and
// the cursor lands just past the prefix, so typing replaces the placeholder.
func WrapSelection(text string, sel Selection, prefix, suffix, placeholder string) (string, Selection) {
	sel = sel.clamp(len(text))

	if sel.Start == sel.End {
		newText := text[:sel.Start] + prefix + placeholder + suffix + text[sel.Start:]
		p := sel.Start + len(prefix)
		return newText, Selection{Start: p, End: p}
	}

	selected := text[sel.Start:sel.End]
	newText := text[:sel.Start] + prefix + selected + suffix + text[sel.End:]
	p := sel.End + len(prefix) + len(suffix)
	return newText, Selection{Start: p, End: p}
}

// InsertOnNewLine inserts snippet starting on its own line at the cursor.
// A newline is prepended only when the text before the cursor is non-empty
// and does not already end with one. The returned cursor sits immediately
// after the snippet in the new string.
func InsertOnNewLine(text string, cursor int, snippet string) (string, int) {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(text) {
		cursor = len(text)
	}

	insert := snippet
	before := text[:cursor]
	if before != "" && !strings.HasSuffix(before, "\n") {
		insert = "\n" + snippet
	}

	return before + insert + text[cursor:], cursor + len(insert)
}
