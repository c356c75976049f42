// Package model defines core data structures and types for the blog editor.
package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type UserID string

// Slug identifies a post inside the content repository. Lowercase letters,
// digits and hyphens only.
type Slug string

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

func (s Slug) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("slug must not be empty")
	}
	if len(s) > 100 {
		return fmt.Errorf("slug exceeds maximum length of 100 characters")
	}
	if !slugPattern.MatchString(string(s)) {
		return fmt.Errorf("slug %q may only contain lowercase letters, digits and hyphens", s)
	}
	return nil
}

// Post is a blog post as stored in the content repository.
type Post struct {
	Slug        Slug      `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Draft       bool      `json:"draft"`
	Tags        []string  `json:"tags"`
	Content     string    `json:"content"`

	// Path of the source file inside the repository.
	FilePath string `json:"file_path"`
}

// PostListItem is a post without its body, for list views.
type PostListItem struct {
	Slug        Slug      `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Draft       bool      `json:"draft"`
	Tags        []string  `json:"tags"`
}

type PostList struct {
	Posts []PostListItem `json:"posts"`
	Total int            `json:"total"`
}

// PostUpdate carries a partial update; nil fields keep their current value.
type PostUpdate struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Date        *time.Time `json:"date"`
	Draft       *bool      `json:"draft"`
	Tags        *[]string  `json:"tags"`
	Content     *string    `json:"content"`
}

const (
	maxTitleLen       = 200
	maxDescriptionLen = 500
	maxTags           = 20
	maxTagLen         = 50
)

// ValidateTags trims, drops empty entries and rejects malformed tags.
// The returned slice preserves the caller's ordering.
func ValidateTags(tags []string) ([]string, error) {
	if len(tags) > maxTags {
		return nil, fmt.Errorf("at most %d tags are allowed", maxTags)
	}

	validated := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if len(tag) > maxTagLen {
			return nil, fmt.Errorf("tag %q exceeds maximum length of %d characters", tag[:20]+"...", maxTagLen)
		}
		for _, c := range tag {
			if !isTagRune(c) {
				return nil, fmt.Errorf("tag %q contains invalid characters", tag)
			}
		}
		validated = append(validated, tag)
	}
	return validated, nil
}

func isTagRune(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == ' ':
		return true
	}
	return false
}

// Validate checks the fields required for committing a post.
func (p *Post) Validate() error {
	if err := p.Slug.Validate(); err != nil {
		return err
	}
	if l := len(strings.TrimSpace(p.Title)); l == 0 || len(p.Title) > maxTitleLen {
		return fmt.Errorf("title must be between 1 and %d characters", maxTitleLen)
	}
	if l := len(strings.TrimSpace(p.Description)); l == 0 || len(p.Description) > maxDescriptionLen {
		return fmt.Errorf("description must be between 1 and %d characters", maxDescriptionLen)
	}
	tags, err := ValidateTags(p.Tags)
	if err != nil {
		return err
	}
	p.Tags = tags
	return nil
}
