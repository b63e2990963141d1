package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/agrobot/pkg/domain"
	"github.com/aretw0/agrobot/pkg/ports"
)

// Mask replaces redacted text.
const Mask = "***"

type redactionMiddleware struct {
	next     ports.HistoryStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware masks text matching any pattern before it is stored.
// Only the stored copy is changed: the reply already sent is untouched, but
// later turns see the masked text in their context.
func NewRedactionMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.HistoryStore) ports.HistoryStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactionMiddleware) Append(ctx context.Context, key string, limit int, msgs ...domain.Message) (int, error) {
	// Clone first so the caller's messages stay intact.
	masked := domain.CloneMessages(msgs)
	for i := range masked {
		for j, part := range masked[i].Parts {
			if part.Kind == domain.PartText {
				masked[i].Parts[j].Text = m.mask(part.Text)
			}
		}
	}
	return m.next.Append(ctx, key, limit, masked...)
}

func (m *redactionMiddleware) mask(text string) string {
	for _, p := range m.patterns {
		text = p.ReplaceAllString(text, Mask)
	}
	return text
}

func (m *redactionMiddleware) Window(ctx context.Context, key string, n int) ([]domain.Message, error) {
	return m.next.Window(ctx, key, n)
}

func (m *redactionMiddleware) Len(ctx context.Context, key string) (int, error) {
	return m.next.Len(ctx, key)
}

func (m *redactionMiddleware) Reset(ctx context.Context, key string) error {
	return m.next.Reset(ctx, key)
}
