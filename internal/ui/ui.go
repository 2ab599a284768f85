// Package ui renders CLI output. Styled output is used on a terminal,
// plain text everywhere else so piped output stays clean.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/notesearch/internal/index"
	"github.com/Aman-CERP/notesearch/internal/search"
)

// Color palette (256-color codes).
const (
	colorAccent = "154"
	colorGray   = "245"
	colorDim    = "238"
	colorRed    = "196"
	colorYellow = "220"
)

// Styles holds the render styles for terminal output.
type Styles struct {
	Title   lipgloss.Style
	Score   lipgloss.Style
	Path    lipgloss.Style
	Body    lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
}

func defaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent)),
		Score:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		Path:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Body:    lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorRed)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
	}
}

func plainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{Title: plain, Score: plain, Path: plain, Body: plain, Error: plain, Warning: plain}
}

// Printer renders results and status to a writer.
type Printer struct {
	out    io.Writer
	styles Styles
}

// NewPrinter creates a printer for w, styled when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	styles := plainStyles()
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		styles = defaultStyles()
	}
	return &Printer{out: w, styles: styles}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// PrintResults renders a ranked result list.
func (p *Printer) PrintResults(results []*search.Result, query string) {
	if len(results) == 0 {
		fmt.Fprintf(p.out, "No results for %q.\n", query)
		return
	}
	for i, r := range results {
		title := r.Chunk.FileName
		if r.Chunk.Heading != "" {
			title += " > " + r.Chunk.Heading
		}
		fmt.Fprintf(p.out, "%s %s\n",
			p.styles.Title.Render(fmt.Sprintf("%d. %s", i+1, title)),
			p.styles.Score.Render(fmt.Sprintf("[%.3f %s]", r.Score, r.MatchType)))
		fmt.Fprintf(p.out, "   %s\n",
			p.styles.Path.Render(fmt.Sprintf("%s:%d-%d", r.Chunk.FilePath, r.Chunk.StartLine, r.Chunk.EndLine)))
		fmt.Fprintf(p.out, "   %s\n", p.styles.Body.Render(snippet(r.Chunk.Content, 160)))
		if i < len(results)-1 {
			fmt.Fprintln(p.out)
		}
	}
}

// PrintStats renders index status.
func (p *Printer) PrintStats(s index.Stats) {
	state := "not built"
	if s.Built {
		state = "ready"
	}
	fmt.Fprintf(p.out, "%s %s\n", p.styles.Title.Render("Index:"), state)
	fmt.Fprintf(p.out, "  files:   %d\n", s.Files)
	fmt.Fprintf(p.out, "  chunks:  %d\n", s.Chunks)
	fmt.Fprintf(p.out, "  vectors: %d\n", s.Vectors)
	fmt.Fprintf(p.out, "  tokens:  %d\n", s.TokensUsed)
	fmt.Fprintf(p.out, "  embedding enabled: %v\n", s.Embedding)
	if s.UnsavedData {
		fmt.Fprintf(p.out, "  %s\n", p.styles.Warning.Render("unsaved vector data"))
	}
}

// PrintError renders an error line.
func (p *Printer) PrintError(err error) {
	fmt.Fprintf(p.out, "%s %v\n", p.styles.Error.Render("error:"), err)
}

// snippet flattens content to one line and truncates it.
func snippet(content string, max int) string {
	line := strings.Join(strings.Fields(content), " ")
	runes := []rune(line)
	if len(runes) <= max {
		return line
	}
	return string(runes[:max-1]) + "…"
}
