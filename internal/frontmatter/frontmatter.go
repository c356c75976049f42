// Package frontmatter parses and generates the YAML front matter block used by
// Astro-style markdown posts.
package frontmatter

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FrontMatter holds the metadata block of a post.
type FrontMatter struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Date        string   `yaml:"date"`
	Draft       bool     `yaml:"draft"`
	Tags        []string `yaml:"tags"`
}

const DateLayout = "2006-01-02"

var fenceRe = regexp.MustCompile(`(?s)\A---\s*\n(.*?)\n---\s*\n(.*)\z`)

// Parse splits content into front matter and body. Content without a front
// matter block, or with YAML that fails to parse, yields an empty FrontMatter
// and the input unchanged as body.
func Parse(content string) (FrontMatter, string) {
	m := fenceRe.FindStringSubmatch(content)
	if m == nil {
		return FrontMatter{}, content
	}

	var fm FrontMatter
	if err := yaml.Unmarshal([]byte(m[1]), &fm); err != nil {
		return FrontMatter{}, content
	}
	return fm, m[2]
}

// ParseDate reads the front matter date, falling back to today when missing
// or malformed.
func (fm FrontMatter) ParseDate() time.Time {
	t, err := time.Parse(DateLayout, fm.Date)
	if err != nil {
		return time.Now().UTC().Truncate(24 * time.Hour)
	}
	return t
}

// Generate builds the fenced YAML block. Field order is stable: title,
// description, date, then draft and tags only when set.
func Generate(title, description string, date time.Time, draft bool, tags []string) string {
	var sb strings.Builder
	sb.WriteString("---\n")

	writeField(&sb, "title", title)
	writeField(&sb, "description", description)
	sb.WriteString("date: ")
	sb.WriteString(date.Format(DateLayout))
	sb.WriteString("\n")

	if draft {
		sb.WriteString("draft: true\n")
	}
	if len(tags) > 0 {
		sb.WriteString("tags:\n")
		for _, tag := range tags {
			sb.WriteString("- ")
			sb.WriteString(quoteYAML(tag))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("---\n")
	return sb.String()
}

func writeField(sb *strings.Builder, key, value string) {
	sb.WriteString(key)
	sb.WriteString(": ")
	sb.WriteString(quoteYAML(value))
	sb.WriteString("\n")
}

// quoteYAML emits a scalar the way yaml.Marshal would, so round-tripping
// through Parse is lossless for titles containing colons, quotes etc.
func quoteYAML(s string) string {
	out, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Sprintf("%q", s)
	}
	return strings.TrimSuffix(string(out), "\n")
}

// CreateContent assembles a complete post file: front matter, blank line, body.
func CreateContent(title, description string, date time.Time, body string, draft bool, tags []string) string {
	return Generate(title, description, date, draft, tags) + "\n" + body
}

var (
	slugSeparators = regexp.MustCompile(`[\s_]+`)
	slugInvalid    = regexp.MustCompile(`[^a-z0-9-]`)
	slugCollapse   = regexp.MustCompile(`-+`)
)

// GenerateSlug derives a URL-safe slug from a post title.
func GenerateSlug(title string) string {
	slug := strings.ToLower(title)
	slug = slugSeparators.ReplaceAllString(slug, "-")
	slug = slugInvalid.ReplaceAllString(slug, "")
	slug = slugCollapse.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
