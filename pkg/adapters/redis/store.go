package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/agrobot/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

const (
	// DefaultPrefix namespaces history keys.
	DefaultPrefix = "agrobot:history:"

	// DefaultTTL bounds how long an idle conversation is kept.
	DefaultTTL = 24 * time.Hour
)

// Store implements ports.HistoryStore using one Redis list per conversation.
// Every write refreshes the key TTL; it is a shared cache, not durable storage.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for conversations (0 disables it).
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for conversations.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// NewFromClient creates a Redis store on a client owned by the caller.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		ttl:    DefaultTTL,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(conversationID string) string {
	return s.prefix + conversationID
}

// Append pushes the messages, trims the list and refreshes the TTL in one transaction.
func (s *Store) Append(ctx context.Context, conversationID string, limit int, msgs ...domain.Message) (int, error) {
	if len(msgs) == 0 {
		return s.Len(ctx, conversationID)
	}

	values := make([]any, 0, len(msgs))
	for _, m := range msgs {
		if err := m.Validate(); err != nil {
			return 0, err
		}
		data, err := json.Marshal(m)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal message: %w", err)
		}
		values = append(values, data)
	}

	key := s.key(conversationID)
	var length *backend.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if limit > 0 {
			pipe.LTrim(ctx, key, int64(-limit), -1)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		length = pipe.LLen(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to append to redis: %w", err)
	}

	return int(length.Val()), nil
}

// Window returns the last n entries, oldest first.
func (s *Store) Window(ctx context.Context, conversationID string, n int) ([]domain.Message, error) {
	start := int64(0)
	if n > 0 {
		start = int64(-n)
	}

	raw, err := s.client.LRange(ctx, s.key(conversationID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read from redis: %w", err)
	}

	msgs := make([]domain.Message, 0, len(raw))
	for _, item := range raw {
		var m domain.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Len returns the number of stored entries.
func (s *Store) Len(ctx context.Context, conversationID string) (int, error) {
	n, err := s.client.LLen(ctx, s.key(conversationID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read length from redis: %w", err)
	}
	return int(n), nil
}

// Reset removes the conversation.
func (s *Store) Reset(ctx context.Context, conversationID string) error {
	return s.client.Del(ctx, s.key(conversationID)).Err()
}
