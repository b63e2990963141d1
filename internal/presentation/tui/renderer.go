package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/agrobot/pkg/domain"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const defaultWidth = 80

// Renderer turns markdown into terminal output.
type Renderer func(string) (string, error)

// NewRenderer returns a glamour renderer wrapping at width columns.
// It detects light and dark backgrounds.
func NewRenderer(width int) (Renderer, error) {
	if width <= 0 {
		width = defaultWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
		glamour.WithEmoji(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	return r.Render, nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the column count of f, or 80 when it cannot be determined.
func Width(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// StepsMarkdown formats a reply as a numbered markdown list when it has
// more than one step.
func StepsMarkdown(reply string) string {
	steps := domain.SplitSteps(reply)
	if len(steps) <= 1 {
		return strings.Join(steps, "")
	}
	var b strings.Builder
	for i, step := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, indent(step, "   "))
	}
	return b.String()
}

// PlainSteps is StepsMarkdown for pipes: steps are numbered and separated
// by blank lines.
func PlainSteps(reply string) string {
	steps := domain.SplitSteps(reply)
	if len(steps) <= 1 {
		return strings.Join(steps, "")
	}
	lines := make([]string, len(steps))
	for i, step := range steps {
		lines[i] = fmt.Sprintf("%d) %s", i+1, step)
	}
	return strings.Join(lines, "\n\n")
}

// indent prefixes every line after the first, so multi-line steps stay
// inside their list item.
func indent(s, prefix string) string {
	return strings.ReplaceAll(s, "\n", "\n"+prefix)
}
