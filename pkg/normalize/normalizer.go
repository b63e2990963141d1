// Package normalize validates and decodes raw request payloads into a
// domain.NormalizedInput.
package normalize

import (
	"fmt"
	"strings"

	"github.com/aretw0/agrobot/pkg/domain"
)

// Normalizer turns raw text and upload bytes into a canonical input.
// The zero value is not usable; use New.
type Normalizer struct {
	maxTextBytes  int
	maxImageBytes int
	maxDimension  int
	maxPixels     int
	defaultPrompt string
}

// Option configures the Normalizer.
type Option func(*Normalizer)

// WithMaxTextBytes sets the text size limit (<= 0 disables it).
func WithMaxTextBytes(limit int) Option {
	return func(nm *Normalizer) {
		nm.maxTextBytes = limit
	}
}

// WithMaxImageBytes sets the raw upload size limit (<= 0 disables it).
func WithMaxImageBytes(limit int) Option {
	return func(nm *Normalizer) {
		nm.maxImageBytes = limit
	}
}

// WithMaxImageDimension sets the longest side after normalization (<= 0 disables resizing).
func WithMaxImageDimension(px int) Option {
	return func(nm *Normalizer) {
		nm.maxDimension = px
	}
}

// WithMaxImagePixels bounds the declared width × height of uploads
// (<= 0 disables it).
func WithMaxImagePixels(px int) Option {
	return func(nm *Normalizer) {
		nm.maxPixels = px
	}
}

// WithDefaultPrompt replaces the prompt used for image-only requests.
func WithDefaultPrompt(prompt string) Option {
	return func(nm *Normalizer) {
		if strings.TrimSpace(prompt) != "" {
			nm.defaultPrompt = prompt
		}
	}
}

// New creates a Normalizer with default limits.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		maxTextBytes:  DefaultMaxTextBytes,
		maxImageBytes: DefaultMaxImageBytes,
		maxDimension:  DefaultMaxImageDimension,
		maxPixels:     DefaultMaxImagePixels,
		defaultPrompt: domain.DefaultImagePrompt,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize validates the request payload. An empty rawText and a nil or
// empty rawImage both count as absent.
func (n *Normalizer) Normalize(rawText string, rawImage []byte) (domain.NormalizedInput, error) {
	text, err := SanitizeText(rawText, n.maxTextBytes)
	if err != nil {
		return domain.NormalizedInput{}, err
	}

	if text == "" && len(rawImage) == 0 {
		return domain.NormalizedInput{}, domain.ErrEmptyInput
	}

	in := domain.NormalizedInput{Text: text, TextProvided: text != ""}

	if len(rawImage) > 0 {
		if n.maxImageBytes > 0 && len(rawImage) > n.maxImageBytes {
			return domain.NormalizedInput{}, fmt.Errorf("%w: image exceeds maximum allowed size: size=%d limit=%d",
				domain.ErrInvalidInput, len(rawImage), n.maxImageBytes)
		}
		img, err := DecodeImage(rawImage, n.maxDimension, n.maxPixels)
		if err != nil {
			return domain.NormalizedInput{}, err
		}
		in.Image = img
		if in.Text == "" {
			in.Text = n.defaultPrompt
		}
	}

	return in, nil
}
