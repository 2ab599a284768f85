package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aman-CERP/notesearch/internal/search"
)

// ExecuteToolSearch runs a query on behalf of an assistant tool call
// and renders the results as markdown. topK is capped at
// DefaultToolTopK to keep tool output bounded.
func (m *Manager) ExecuteToolSearch(ctx context.Context, query string, topK int) string {
	if topK <= 0 || topK > DefaultToolTopK {
		topK = DefaultToolTopK
	}
	results := m.Search(ctx, query, SearchOptions{TopK: topK})
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", query)
	}
	return BuildContext(results)
}

// BuildContext renders results as markdown blocks suitable for prompt
// injection: a heading line per chunk, a provenance line, then the body.
func BuildContext(results []*search.Result) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		c := r.Chunk
		b.WriteString("### [[")
		b.WriteString(c.FileName)
		b.WriteString("]]")
		if c.Heading != "" {
			b.WriteString(" > ")
			b.WriteString(c.Heading)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s · score %.3f (%s) · lines %d-%d\n\n",
			c.FilePath, r.Score, r.MatchType, c.StartLine, c.EndLine)
		b.WriteString(strings.TrimRight(c.Content, "\n"))
	}
	return b.String()
}
