package vault

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/markdown"
)

// index is an immutable snapshot of the vault's files and wiki links.
type index struct {
	// files holds every non-hidden file path.
	files map[string]struct{}

	// byName maps a lower-cased file name, and for notes the name without
	// ".md", to the paths carrying it.
	byName map[string][]string

	// links maps each note to its resolved link targets.
	links map[string][]string

	// backlinks maps a target to the notes linking to it and the link
	// targets hit in each.
	backlinks map[string]map[string][]string
}

func buildIndex(ctx context.Context, root string) (*index, error) {
	idx := &index{
		files:     make(map[string]struct{}),
		byName:    make(map[string][]string),
		links:     make(map[string][]string),
		backlinks: make(map[string]map[string][]string),
	}

	var notes []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			logger.Warn("vault: skipping %s: %v", p, err)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if isHidden(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		idx.add(rel)
		if strings.EqualFold(path.Ext(rel), ".md") {
			notes = append(notes, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan vault: %w", err)
	}

	for _, paths := range idx.byName {
		sort.Slice(paths, func(i, j int) bool {
			if len(paths[i]) != len(paths[j]) {
				return len(paths[i]) < len(paths[j])
			}
			return paths[i] < paths[j]
		})
	}

	for _, note := range notes {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(note)))
		if err != nil {
			logger.Warn("vault: reading %s: %v", note, err)
			continue
		}
		idx.linkNote(note, string(data))
	}

	return idx, nil
}

func (idx *index) add(rel string) {
	idx.files[rel] = struct{}{}

	name := strings.ToLower(path.Base(rel))
	idx.byName[name] = append(idx.byName[name], rel)
	if strings.HasSuffix(name, ".md") {
		bare := strings.TrimSuffix(name, ".md")
		idx.byName[bare] = append(idx.byName[bare], rel)
	}
}

func (idx *index) linkNote(note, content string) {
	var targets []string
	for _, link := range markdown.ExtractWikiLinks(content) {
		target, ok := idx.resolve(link, note)
		if !ok || target == note || slices.Contains(targets, target) {
			continue
		}
		targets = append(targets, target)

		sources := idx.backlinks[target]
		if sources == nil {
			sources = make(map[string][]string)
			idx.backlinks[target] = sources
		}
		sources[note] = append(sources[note], target)
	}
	idx.links[note] = targets
}

func (idx *index) resolve(link, fromPath string) (string, bool) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", false
	}
	clean := cleanPath(link)

	// A link starting with ./ or ../ is relative to the linking note.
	if strings.HasPrefix(link, "./") || strings.HasPrefix(link, "../") {
		clean = cleanPath(path.Join(path.Dir(cleanPath(fromPath)), link))
	}

	for _, candidate := range []string{clean, clean + ".md"} {
		if _, ok := idx.files[candidate]; ok {
			return candidate, true
		}
	}

	name := strings.ToLower(path.Base(clean))
	if paths := idx.byName[name]; len(paths) > 0 {
		return paths[0], true
	}
	return "", false
}

func (idx *index) sortedFiles() []string {
	files := make([]string, 0, len(idx.files))
	for f := range idx.files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}
