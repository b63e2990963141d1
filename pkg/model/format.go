package model

import (
	"strings"

	"github.com/aretw0/agrobot/pkg/domain"
)

// Bullet is the marker FormatBullets puts in front of list items.
const Bullet = "• "

// FormatBullets rewrites Markdown list markers ("* ", "- ", "+ ") at the start
// of a line into Bullet, strips bold markers and trailing spaces, and collapses
// runs of blank lines. Step delimiters are preserved.
func FormatBullets(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))

	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		trimmed := strings.TrimLeft(line, " \t")

		if trimmed == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false

		if trimmed != domain.StepDelimiter {
			for _, marker := range []string{"* ", "- ", "+ "} {
				if strings.HasPrefix(trimmed, marker) {
					indent := line[:len(line)-len(trimmed)]
					line = indent + Bullet + strings.TrimSpace(trimmed[len(marker):])
					break
				}
			}
			line = strings.ReplaceAll(line, "**", "")
		}
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}
