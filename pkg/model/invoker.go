// Package model calls the multimodal generator and turns its response into
// the reply text, mapping every provider failure to domain.ErrModelFailure.
package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/agrobot/internal/logging"
	"github.com/aretw0/agrobot/pkg/domain"
	"github.com/aretw0/agrobot/pkg/ports"
)

// Invoker wraps a ports.Generator.
type Invoker struct {
	generator ports.Generator
	logger    *slog.Logger
	hooks     domain.Hooks
	bullets   bool
	timeout   time.Duration
}

// Option configures the Invoker.
type Option func(*Invoker)

// WithLogger configures a logger for fallback and failure events.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Invoker) {
		i.logger = logger
	}
}

// WithHooks registers observability callbacks (only OnModelCall is used).
func WithHooks(hooks domain.Hooks) Option {
	return func(i *Invoker) {
		i.hooks = hooks
	}
}

// WithBulletFormatting enables FormatBullets on every reply.
func WithBulletFormatting(enabled bool) Option {
	return func(i *Invoker) {
		i.bullets = enabled
	}
}

// WithTimeout bounds a single model call (0 leaves only the caller's deadline).
func WithTimeout(d time.Duration) Option {
	return func(i *Invoker) {
		i.timeout = d
	}
}

// NewInvoker creates an Invoker over the given generator.
func NewInvoker(generator ports.Generator, opts ...Option) *Invoker {
	i := &Invoker{
		generator: generator,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Invoke sends contents to the generator and returns the trimmed reply.
// Errors always wrap domain.ErrModelFailure or domain.ErrEmptyResponse.
func (i *Invoker) Invoke(ctx context.Context, contents []domain.Message) (string, error) {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := i.generate(ctx, contents)

	event := &domain.ModelEvent{
		Timestamp: start,
		Messages:  len(contents),
	}
	defer func() {
		event.Duration = time.Since(start)
		if i.hooks.OnModelCall != nil {
			i.hooks.OnModelCall(ctx, event)
		}
	}()

	if err != nil {
		event.Err = err
		i.logger.Error("Model request failed", "err", err, "messages", len(contents))
		if errors.Is(err, domain.ErrModelFailure) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrModelFailure, err)
	}

	text := resp.Text
	if !resp.HasText {
		event.Fallback = true
		text = rawString(resp.Raw)
		i.logger.Warn("Model response has no text field, using raw payload",
			"raw_type", fmt.Sprintf("%T", resp.Raw),
		)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		event.Err = domain.ErrEmptyResponse
		return "", domain.ErrEmptyResponse
	}

	if i.bullets {
		text = FormatBullets(text)
	}
	return text, nil
}

// generate calls the generator, converting a panic into an error.
func (i *Invoker) generate(ctx context.Context, contents []domain.Message) (resp domain.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: provider panic: %v", domain.ErrModelFailure, r)
		}
	}()
	return i.generator.Generate(ctx, contents)
}

func rawString(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
