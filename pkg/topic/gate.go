// Package topic implements the keyword heuristic that keeps text-only
// requests inside the agriculture domain.
package topic

import (
	"sort"
	"strings"
	"unicode"
)

// Gate decides whether a text belongs to the agriculture domain.
// It is safe for concurrent use; the keyword set is fixed at construction.
type Gate struct {
	keywords []string
}

// NewGate builds a gate over DefaultKeywords plus any extras.
// Extras are lowercased, trimmed and deduplicated; blanks are ignored.
func NewGate(extra ...string) *Gate {
	seen := make(map[string]struct{}, len(DefaultKeywords)+len(extra))
	keywords := make([]string, 0, len(DefaultKeywords)+len(extra))

	add := func(k string) {
		k = foldKeyword(k)
		name := strings.TrimSpace(k)
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		keywords = append(keywords, k)
	}

	for _, k := range DefaultKeywords {
		add(k)
	}
	for _, k := range extra {
		add(strings.TrimSpace(k))
	}

	sort.Strings(keywords)
	return &Gate{keywords: keywords}
}

// IsInDomain reports whether text contains any keyword, case-insensitively
// and at any position. Empty or blank text is allowed: image-only requests
// are checked by the model's own instruction rather than by this gate.
func (g *Gate) IsInDomain(text string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}
	_, ok := g.Match(text)
	return ok
}

// Match returns the first keyword found in text, if any.
func (g *Gate) Match(text string) (string, bool) {
	folded := fold(text)
	for _, k := range g.keywords {
		if strings.Contains(folded, k) {
			return strings.TrimSpace(k), true
		}
	}
	return "", false
}

// Keywords returns a copy of the active keyword set, sorted.
func (g *Gate) Keywords() []string {
	out := make([]string, len(g.keywords))
	for i, k := range g.keywords {
		out[i] = strings.TrimSpace(k)
	}
	sort.Strings(out)
	return out
}

// foldKeyword normalizes a keyword like fold without the padding, keeping
// the spaces that mark word boundaries.
func foldKeyword(k string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, strings.ToLower(k))
}

// fold lowercases text, turns punctuation into spaces and pads both ends so
// space-delimited keywords also match at the edges.
func fold(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 2)
	b.WriteByte(' ')
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	b.WriteByte(' ')
	return b.String()
}
