package agrobot

import (
	"context"
	_ "embed"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/agrobot/internal/logging"
	"github.com/aretw0/agrobot/pkg/adapters/memory"
	"github.com/aretw0/agrobot/pkg/domain"
	"github.com/aretw0/agrobot/pkg/history"
	"github.com/aretw0/agrobot/pkg/model"
	"github.com/aretw0/agrobot/pkg/normalize"
	"github.com/aretw0/agrobot/pkg/ports"
	"github.com/aretw0/agrobot/pkg/prompt"
	"github.com/aretw0/agrobot/pkg/topic"
)

//go:embed VERSION
var rawVersion string

// Version is the release of this module.
var Version = strings.TrimSpace(rawVersion)

// Request is one chat turn as received from a client.
type Request struct {
	// SessionID identifies the caller; it only matters in session scope.
	SessionID string
	Text      string
	// Image holds the raw upload bytes, if any.
	Image []byte
}

// Bot runs the chat pipeline: normalize, gate, assemble, invoke, record.
type Bot struct {
	normalizer *normalize.Normalizer
	gate       *topic.Gate
	assembler  *prompt.Assembler
	invoker    *model.Invoker
	history    *history.Manager

	modelOpts []model.Option
	hooks     domain.Hooks
	logger    *slog.Logger
}

// Option defines a functional option for configuring the Bot.
type Option func(*Bot)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		b.logger = logger
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.Hooks) Option {
	return func(b *Bot) {
		b.hooks = hooks
	}
}

// WithHistory injects the conversation state (defaults to an in-memory global history).
func WithHistory(m *history.Manager) Option {
	return func(b *Bot) {
		b.history = m
	}
}

// WithNormalizer replaces the default input limits.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(b *Bot) {
		b.normalizer = n
	}
}

// WithGate replaces the default keyword gate.
func WithGate(g *topic.Gate) Option {
	return func(b *Bot) {
		b.gate = g
	}
}

// WithAssembler replaces the default context assembler.
func WithAssembler(a *prompt.Assembler) Option {
	return func(b *Bot) {
		b.assembler = a
	}
}

// WithModelOptions configures the model invoker (timeouts, bullet formatting).
func WithModelOptions(opts ...model.Option) Option {
	return func(b *Bot) {
		b.modelOpts = append(b.modelOpts, opts...)
	}
}

// New builds a Bot around the given model provider.
func New(generator ports.Generator, opts ...Option) *Bot {
	b := &Bot{}
	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = logging.NewNop()
	}
	if b.normalizer == nil {
		b.normalizer = normalize.New()
	}
	if b.gate == nil {
		b.gate = topic.NewGate()
	}
	if b.history == nil {
		b.history = history.NewManager(memory.NewStore(), history.WithLogger(b.logger))
	}
	if b.assembler == nil {
		b.assembler = prompt.NewAssembler(b.history.MaxTurns())
	}

	invokerOpts := []model.Option{
		model.WithLogger(b.logger),
		model.WithHooks(b.hooks),
	}
	b.invoker = model.NewInvoker(generator, append(invokerOpts, b.modelOpts...)...)
	return b
}

// History returns the conversation state owned by the Bot.
func (b *Bot) History() *history.Manager {
	return b.history
}

// Ask runs one turn and returns the reply or a classified error
// (see domain.Kind). History is only appended after a successful model call.
func (b *Bot) Ask(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	event := &domain.TurnEvent{
		Timestamp:      start,
		ConversationID: b.history.ConversationID(req.SessionID),
	}

	reply, err := b.ask(ctx, event, req)

	event.Duration = time.Since(start)
	event.Err = err
	event.Outcome = domain.Kind(err)

	logger := b.logger.With(
		"session_id", req.SessionID,
		"conversation_id", event.ConversationID,
		"has_image", event.HasImage,
		"outcome", event.Outcome,
		"duration", event.Duration,
	)
	switch event.Outcome {
	case "ok":
		logger.Info("Turn completed")
	case "model_failure", "empty_response", "internal":
		logger.Error("Turn failed", "err", err)
	default:
		logger.Info("Turn rejected", "err", err)
	}

	if b.hooks.OnTurn != nil {
		b.hooks.OnTurn(ctx, event)
	}
	return reply, err
}

// Respond is Ask with errors converted to user-facing text.
// It never fails; this is what transports put in their response envelope.
func (b *Bot) Respond(ctx context.Context, req Request) string {
	reply, err := b.Ask(ctx, req)
	if err != nil {
		return domain.UserMessage(err)
	}
	return reply
}

// Reset clears the conversation the session belongs to.
func (b *Bot) Reset(ctx context.Context, sessionID string) error {
	return b.history.Reset(ctx, b.history.ConversationID(sessionID))
}

func (b *Bot) ask(ctx context.Context, event *domain.TurnEvent, req Request) (string, error) {
	in, err := b.normalizer.Normalize(req.Text, req.Image)
	if err != nil {
		return "", err
	}
	event.HasImage = in.HasImage()

	// Image turns rely on the system instruction for topic filtering.
	if !in.HasImage() && !b.gate.IsInDomain(in.Text) {
		return "", domain.ErrTopicRejected
	}

	conversationID := event.ConversationID
	var reply string
	err = b.history.WithLock(ctx, conversationID, func(ctx context.Context) error {
		window, err := b.history.Window(ctx, conversationID, b.assembler.Window)
		if err != nil {
			return err
		}

		contents := b.assembler.Build(window, in)
		reply, err = b.invoker.Invoke(ctx, contents)
		if err != nil {
			return err
		}

		n, err := b.history.Append(ctx, conversationID, in.UserMessage(), domain.NewTextMessage(domain.RoleModel, reply))
		if err != nil {
			// The user still gets the answer; only the next turn loses context.
			b.logger.Error("Failed to record turn", "conversation_id", conversationID, "err", err)
			return nil
		}
		if b.hooks.OnAppend != nil {
			b.hooks.OnAppend(ctx, conversationID, n)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}
