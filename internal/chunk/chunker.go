package chunk

import (
	"regexp"
	"strings"
)

// headingPattern matches markdown headings: 1-6 leading '#' then whitespace.
var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

// maxSplitDepth caps oversize re-splitting. Two levels (paragraphs, then
// single lines) are enough in practice; the hard cap prevents pathological
// recursion on pathological input such as a single multi-megabyte line.
const maxSplitDepth = 2

// Chunker splits documents into chunks under a token budget.
type Chunker struct{}

// New creates a Chunker.
func New() *Chunker {
	return &Chunker{}
}

// unit is an intermediate contiguous slice of the document body.
// start is the 0-based line index into the body (before the front-matter
// offset is applied).
type unit struct {
	start   int
	lines   []string
	heading string
}

func (u *unit) text() string {
	return strings.Join(u.lines, "\n")
}

// Split chunks a document. rawContent is the full file text; strategy and
// maxTokens control the split. The returned chunks carry 0-based line
// numbers in the original file (front-matter lines included in the offset)
// and share the metadata parsed from the front-matter block.
func (c *Chunker) Split(path, displayName, rawContent string, strategy Strategy, maxTokens int) []*Chunk {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	lines := strings.Split(rawContent, "\n")
	fm := parseFrontMatter(lines)
	body := lines[fm.LineCount:]

	if len(body) == 0 || strings.TrimSpace(strings.Join(body, "\n")) == "" {
		return []*Chunk{}
	}

	var units []*unit
	switch strategy {
	case StrategyParagraph:
		units = splitByParagraph(body)
	case StrategyFixed:
		units = splitFixed(body, maxTokens)
	default:
		units = splitBySection(body)
	}

	// Enforce the token budget on every unit.
	var bounded []*unit
	for _, u := range units {
		if EstimateTokens(u.text()) > maxTokens {
			bounded = append(bounded, splitOversize(u, maxTokens, 0)...)
		} else {
			bounded = append(bounded, u)
		}
	}

	chunks := make([]*Chunk, 0, len(bounded))
	for _, u := range bounded {
		u = trimBlankEdges(u)
		if u == nil {
			continue
		}
		content := u.text()
		start := fm.LineCount + u.start
		chunks = append(chunks, &Chunk{
			ID:         ChunkID(path, len(chunks)),
			FilePath:   path,
			FileName:   displayName,
			Content:    content,
			Heading:    u.heading,
			StartLine:  start,
			EndLine:    start + len(u.lines) - 1,
			TokenCount: EstimateTokens(content),
			Metadata:   fm.Metadata,
		})
	}

	return chunks
}

// isFenceLine reports whether a line toggles fenced-code state.
func isFenceLine(line string) bool {
	return strings.HasPrefix(line, "```")
}

// headingText extracts the heading text from a heading line.
func headingText(line string) string {
	m := headingPattern.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[2])
}

// splitBySection starts a new unit at each heading line outside code
// fences. Each unit carries the most recent heading text. An unclosed
// fence at end of file leaves heading detection disabled for the tail.
func splitBySection(body []string) []*unit {
	var units []*unit
	var cur *unit
	inFence := false

	for i, line := range body {
		if isFenceLine(line) {
			inFence = !inFence
		}
		if !inFence && headingPattern.MatchString(line) {
			if cur != nil {
				units = append(units, cur)
			}
			cur = &unit{start: i, heading: headingText(line)}
		} else if cur == nil {
			cur = &unit{start: i}
		}
		cur.lines = append(cur.lines, line)
	}
	if cur != nil {
		units = append(units, cur)
	}
	return units
}

// splitByParagraph starts a new unit after each blank line outside code
// fences, tracking headings the same way as splitBySection.
func splitByParagraph(body []string) []*unit {
	var units []*unit
	var cur *unit
	heading := ""
	inFence := false

	for i, line := range body {
		if isFenceLine(line) {
			inFence = !inFence
		}
		if !inFence && headingPattern.MatchString(line) {
			heading = headingText(line)
		}
		if !inFence && strings.TrimSpace(line) == "" {
			if cur != nil {
				units = append(units, cur)
				cur = nil
			}
			continue
		}
		if cur == nil {
			cur = &unit{start: i, heading: heading}
		}
		cur.lines = append(cur.lines, line)
	}
	if cur != nil {
		units = append(units, cur)
	}
	return units
}

// splitFixed accumulates lines until adding the next line would exceed the
// token budget. Splits never happen inside a code fence.
func splitFixed(body []string, maxTokens int) []*unit {
	var units []*unit
	var cur *unit
	heading := ""
	inFence := false

	for i, line := range body {
		if isFenceLine(line) {
			inFence = !inFence
		}
		if !inFence && headingPattern.MatchString(line) {
			heading = headingText(line)
		}
		if cur != nil && !inFence &&
			EstimateTokens(cur.text())+EstimateTokens(line) > maxTokens {
			units = append(units, cur)
			cur = nil
		}
		if cur == nil {
			cur = &unit{start: i, heading: heading}
		}
		cur.lines = append(cur.lines, line)
	}
	if cur != nil {
		units = append(units, cur)
	}
	return units
}

// splitOversize re-splits a unit that exceeds the token budget. Depth 0
// splits on paragraph boundaries, depth 1 on single lines; at depth 2 the
// unit is emitted as-is (a single atomic line over the budget is the
// irreducible case).
func splitOversize(u *unit, maxTokens, depth int) []*unit {
	if depth >= maxSplitDepth {
		return []*unit{u}
	}

	var parts []*unit
	if depth == 0 {
		parts = paragraphParts(u)
	} else {
		parts = lineParts(u)
	}

	var out []*unit
	var cur *unit
	for _, p := range parts {
		if EstimateTokens(p.text()) > maxTokens {
			if cur != nil {
				out = append(out, cur)
				cur = nil
			}
			out = append(out, splitOversize(p, maxTokens, depth+1)...)
			continue
		}
		if cur != nil &&
			EstimateTokens(cur.text())+EstimateTokens(p.text()) > maxTokens {
			out = append(out, cur)
			cur = nil
		}
		if cur == nil {
			cp := *p
			cp.lines = append([]string(nil), p.lines...)
			cur = &cp
			continue
		}
		// Reattach the blank separator lines skipped between parts so
		// line ranges stay contiguous.
		for line := cur.start + len(cur.lines); line < p.start; line++ {
			cur.lines = append(cur.lines, u.lines[line-u.start])
		}
		cur.lines = append(cur.lines, p.lines...)
	}
	if cur != nil {
		out = append(out, cur)
	}
	return out
}

// paragraphParts splits a unit on blank lines, preserving line offsets.
func paragraphParts(u *unit) []*unit {
	var parts []*unit
	var cur *unit
	for i, line := range u.lines {
		if strings.TrimSpace(line) == "" {
			if cur != nil {
				parts = append(parts, cur)
				cur = nil
			}
			continue
		}
		if cur == nil {
			cur = &unit{start: u.start + i, heading: u.heading}
		}
		cur.lines = append(cur.lines, line)
	}
	if cur != nil {
		parts = append(parts, cur)
	}
	return parts
}

// lineParts splits a unit into one part per line.
func lineParts(u *unit) []*unit {
	parts := make([]*unit, 0, len(u.lines))
	for i, line := range u.lines {
		parts = append(parts, &unit{
			start:   u.start + i,
			lines:   []string{line},
			heading: u.heading,
		})
	}
	return parts
}

// trimBlankEdges drops leading and trailing blank lines from a unit,
// adjusting its start line. Returns nil when nothing remains.
func trimBlankEdges(u *unit) *unit {
	lo, hi := 0, len(u.lines)
	for lo < hi && strings.TrimSpace(u.lines[lo]) == "" {
		lo++
	}
	for hi > lo && strings.TrimSpace(u.lines[hi-1]) == "" {
		hi--
	}
	if lo == hi {
		return nil
	}
	return &unit{
		start:   u.start + lo,
		lines:   u.lines[lo:hi],
		heading: u.heading,
	}
}
