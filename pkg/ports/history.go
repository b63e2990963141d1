package ports

import (
	"context"

	"github.com/aretw0/agrobot/pkg/domain"
)

// HistoryStore keeps the ordered message history of conversations.
// Unknown keys behave as empty conversations.
type HistoryStore interface {
	// Append adds messages to the end of the conversation and then drops the
	// oldest entries so that at most limit remain (limit <= 0 means unbounded).
	// It returns the length after trimming.
	Append(ctx context.Context, key string, limit int, msgs ...domain.Message) (int, error)

	// Window returns the last n entries in their original order.
	// n <= 0 returns the whole conversation.
	Window(ctx context.Context, key string, n int) ([]domain.Message, error)

	// Len returns the number of stored entries.
	Len(ctx context.Context, key string) (int, error)

	// Reset removes the conversation.
	Reset(ctx context.Context, key string) error
}
