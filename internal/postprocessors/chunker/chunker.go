package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// frontmatterPattern matches a YAML block opening the document.
	frontmatterPattern = regexp.MustCompile(`(?ms)\A---[ \t]*\r?\n.*?^---[ \t]*\r?(?:\n|\z)`)

	// codeFencePattern matches fenced code blocks delimited by ``` lines.
	codeFencePattern = regexp.MustCompile("(?ms)^[ \\t]*```.*?^[ \\t]*```[^\\n]*(?:\\n|\\z)")

	// blankRunPattern matches three or more consecutive blank lines.
	blankRunPattern = regexp.MustCompile(`\n(?:[ \t]*\n){3,}`)

	// headerPattern matches an ATX header line and captures its level.
	headerPattern = regexp.MustCompile(`^(#{1,6})[ \t]+\S`)

	// listItemPattern matches bullet and numbered list items, indented or not.
	listItemPattern = regexp.MustCompile(`^[ \t]*(?:[-*+]|\d+[.)])[ \t]+`)
)

// Preprocess strips noise before chunking: a leading frontmatter block,
// fenced code blocks, headers without content, and runs of blank lines.
// Each step runs once over the whole text, in that order.
func Preprocess(text string) string {
	text = frontmatterPattern.ReplaceAllString(text, "")
	text = codeFencePattern.ReplaceAllString(text, "")
	text = removeEmptyHeaders(text)
	return blankRunPattern.ReplaceAllString(text, "\n\n")
}

// headerLevel returns the level of a header line, or 0 for other lines.
func headerLevel(line string) int {
	m := headerPattern.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	return len(m[1])
}

// removeEmptyHeaders drops headers that have no non-header text before the
// next header of equal or higher importance (or the end of the text).
func removeEmptyHeaders(text string) string {
	lines := strings.Split(text, "\n")
	keep := make([]bool, len(lines))

	for i, line := range lines {
		level := headerLevel(line)
		if level == 0 {
			keep[i] = true
			continue
		}
		for j := i + 1; j < len(lines); j++ {
			next := headerLevel(lines[j])
			if next > 0 && next <= level {
				break
			}
			if next == 0 && strings.TrimSpace(lines[j]) != "" {
				keep[i] = true
				break
			}
		}
	}

	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if keep[i] {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// Split divides text into chunks of at most maxSize characters.
//
// Lines made of three dashes are hard section boundaries. Within a section
// every header starts a new group and is repeated at the top of each chunk
// of that group. Lists are never split; a single block longer than maxSize
// is emitted as its own oversized chunk. Empty chunks are dropped.
func Split(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	var chunks []string
	for _, section := range splitSections(text) {
		for _, group := range splitHeaders(section) {
			chunks = append(chunks, pack(group.header, parseBlocks(group.lines), maxSize)...)
		}
	}
	return chunks
}

// splitSections splits text into line groups at "---" separator lines.
func splitSections(text string) [][]string {
	var sections [][]string
	var current []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimRight(line, " \t\r") == "---" {
			sections = append(sections, current)
			current = nil
			continue
		}
		current = append(current, line)
	}
	return append(sections, current)
}

// headerGroup is a header line and the lines up to the next header.
type headerGroup struct {
	header string
	lines  []string
}

func splitHeaders(lines []string) []headerGroup {
	groups := []headerGroup{{}}
	for _, line := range lines {
		if headerLevel(line) > 0 {
			groups = append(groups, headerGroup{header: strings.TrimRight(line, " \t\r")})
			continue
		}
		last := &groups[len(groups)-1]
		last.lines = append(last.lines, line)
	}
	return groups
}

// parseBlocks groups lines into paragraphs and lists. A list keeps its
// items together, including nested items, indented continuations and
// single blank lines between items.
func parseBlocks(lines []string) []string {
	var (
		blocks       []string
		current      []string
		inList       bool
		pendingBlank bool
	)

	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
		inList = false
		pendingBlank = false
	}

	for _, raw := range lines {
		line := strings.TrimRight(raw, " \t\r")
		blank := strings.TrimSpace(line) == ""
		indented := strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")

		switch {
		case listItemPattern.MatchString(line):
			if !inList {
				flush()
			} else if pendingBlank {
				current = append(current, "")
			}
			inList = true
			pendingBlank = false
			current = append(current, line)

		case inList && !blank && indented:
			if pendingBlank {
				current = append(current, "")
				pendingBlank = false
			}
			current = append(current, line)

		case blank:
			if inList && !pendingBlank {
				pendingBlank = true
				continue
			}
			flush()

		default:
			if inList {
				flush()
			}
			current = append(current, line)
		}
	}
	flush()

	return blocks
}

// pack joins blocks into chunks no longer than maxSize where possible.
func pack(header string, blocks []string, maxSize int) []string {
	var (
		chunks []string
		body   []string
		size   int
	)

	base := 0
	if header != "" {
		base = runeLen(header) + 1
	}

	emit := func() {
		if len(body) == 0 {
			return
		}
		text := strings.Join(body, "\n\n")
		if header != "" {
			text = header + "\n" + text
		}
		if text = strings.TrimSpace(text); text != "" {
			chunks = append(chunks, text)
		}
		body = nil
		size = 0
	}

	for _, block := range blocks {
		n := runeLen(block)
		sep := 0
		if len(body) > 0 {
			sep = 2
		}
		if len(body) > 0 && base+size+sep+n > maxSize {
			emit()
			sep = 0
		}
		body = append(body, block)
		size += sep + n
	}
	emit()

	return chunks
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
