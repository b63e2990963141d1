package normalize

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/agrobot/pkg/domain"
)

// DefaultMaxTextBytes is the default upper bound for the user text (4KB).
const DefaultMaxTextBytes = 4096

var (
	ErrTextTooLarge = fmt.Errorf("%w: text exceeds maximum allowed size", domain.ErrInvalidInput)
	ErrInvalidUTF8  = fmt.Errorf("%w: text contains invalid UTF-8 sequences", domain.ErrInvalidInput)
)

// SanitizeText trims the text, enforces the size limit, validates UTF-8
// and strips control characters other than newline, tab and carriage return.
// A non-positive limit disables the size check.
func SanitizeText(input string, limit int) (string, error) {
	input = strings.TrimSpace(input)

	if limit > 0 && len(input) > limit {
		// Rejected rather than truncated: a cut question is a different question.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrTextTooLarge, len(input), limit)
	}

	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

// IsTextError reports whether err came from SanitizeText.
func IsTextError(err error) bool {
	return errors.Is(err, ErrTextTooLarge) || errors.Is(err, ErrInvalidUTF8)
}
