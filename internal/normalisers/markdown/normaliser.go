// Package markdown parses the parts of a markdown note the RAG pipeline
// cares about: YAML frontmatter, wiki links and a display title.
package markdown

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// frontmatterPattern captures the body of a YAML block opening a note.
	frontmatterPattern = regexp.MustCompile(`(?ms)\A---[ \t]*\r?\n(.*?)^---[ \t]*\r?$`)

	// wikiLinkPattern matches [[target]], [[target|alias]], [[target#heading]]
	// and ![[embed]], capturing the target.
	wikiLinkPattern = regexp.MustCompile(`!?\[\[([^\[\]|#]*)(?:#[^\[\]|]*)?(?:\|[^\[\]]*)?\]\]`)
)

// createdLayouts are the accepted textual formats of the created field.
var createdLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Frontmatter holds the recognised frontmatter fields of a note.
type Frontmatter struct {
	Title   string
	Created time.Time
}

// HasCreated reports whether a valid created time was present.
func (f Frontmatter) HasCreated() bool {
	return !f.Created.IsZero()
}

type rawFrontmatter struct {
	Title   string    `yaml:"title"`
	Created yaml.Node `yaml:"created"`
}

// ParseFrontmatter reads the leading frontmatter block of content.
// A note without frontmatter yields a zero Frontmatter and no error.
// A created value that cannot be parsed is left zero; invalid YAML is an error.
func ParseFrontmatter(content string) (Frontmatter, error) {
	m := frontmatterPattern.FindStringSubmatch(content)
	if m == nil {
		return Frontmatter{}, nil
	}

	var raw rawFrontmatter
	if err := yaml.Unmarshal([]byte(m[1]), &raw); err != nil {
		return Frontmatter{}, fmt.Errorf("parse frontmatter: %w", err)
	}

	fm := Frontmatter{Title: strings.TrimSpace(raw.Title)}
	if raw.Created.Kind == yaml.ScalarNode {
		if t, ok := ParseCreated(raw.Created.Value); ok {
			fm.Created = t
		}
	}
	return fm, nil
}

// ParseCreated parses a created value as a date, a timestamp or unix seconds.
func ParseCreated(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range createdLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}

	if secs, err := strconv.ParseInt(value, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC(), true
	}

	return time.Time{}, false
}

// ExtractWikiLinks returns the distinct link targets of content in order of
// first appearance. Headings and aliases are stripped from the targets.
func ExtractWikiLinks(content string) []string {
	matches := wikiLinkPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		target := strings.TrimSpace(m[1])
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true
		links = append(links, target)
	}
	return links
}

// Title returns the frontmatter title, else the first H1 heading, else a
// title derived from the file name.
func Title(content, path string) string {
	if fm, err := ParseFrontmatter(content); err == nil && fm.Title != "" {
		return fm.Title
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}

	filename := filepath.Base(path)
	filename = strings.TrimSuffix(filename, filepath.Ext(filename))
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}
