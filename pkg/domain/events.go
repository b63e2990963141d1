package domain

import (
	"context"
	"time"
)

// TurnEvent describes the outcome of one request through the pipeline.
type TurnEvent struct {
	Timestamp      time.Time     `json:"timestamp"`
	ConversationID string        `json:"conversation_id"`
	HasImage       bool          `json:"has_image"`
	Outcome        string        `json:"outcome"`
	Duration       time.Duration `json:"duration"`
	Err            error         `json:"-"`
}

// ModelEvent describes a single call to the model provider.
type ModelEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	Messages  int           `json:"messages"`
	Duration  time.Duration `json:"duration"`
	Fallback  bool          `json:"fallback,omitempty"`
	Err       error         `json:"-"`
}

// Hooks defines callbacks for pipeline observability.
type Hooks struct {
	OnTurn      func(context.Context, *TurnEvent)
	OnModelCall func(context.Context, *ModelEvent)
	OnAppend    func(ctx context.Context, conversationID string, entries int)
}

// Merge chains two hook sets; h runs before other.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnTurn:      chain(h.OnTurn, other.OnTurn),
		OnModelCall: chain(h.OnModelCall, other.OnModelCall),
		OnAppend: func(ctx context.Context, id string, n int) {
			if h.OnAppend != nil {
				h.OnAppend(ctx, id, n)
			}
			if other.OnAppend != nil {
				other.OnAppend(ctx, id, n)
			}
		},
	}
}

func chain[E any](a, b func(context.Context, *E)) func(context.Context, *E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *E) {
		a(ctx, e)
		b(ctx, e)
	}
}
