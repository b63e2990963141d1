package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/agrobot/pkg/domain"
)

type conversation struct {
	msgs    []domain.Message
	touched time.Time
}

// Store implements ports.HistoryStore in memory.
// Safe for concurrent use. Without WithTTL or WithMaxConversations,
// contents live for the process lifetime.
type Store struct {
	data map[string]*conversation
	mu   sync.Mutex

	ttl       time.Duration
	maxConvs  int
	now       func() time.Time
	lastSweep time.Time
}

type Option func(*Store)

// WithTTL drops conversations idle for longer than ttl. Appends and
// windows count as activity.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithMaxConversations bounds the number of stored conversations; the least
// recently used one is dropped to make room.
func WithMaxConversations(n int) Option {
	return func(s *Store) {
		s.maxConvs = n
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		data: make(map[string]*conversation),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds messages and trims the conversation to limit entries.
func (s *Store) Append(ctx context.Context, key string, limit int, msgs ...domain.Message) (int, error) {
	for _, m := range msgs {
		if err := m.Validate(); err != nil {
			return 0, err
		}
	}
	// Copy before taking the lock so callers can't mutate stored parts.
	copied := domain.CloneMessages(msgs)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	c := s.lookup(key, now)
	if c == nil {
		s.makeRoom()
		c = &conversation{}
		s.data[key] = c
	}

	history := append(c.msgs, copied...)
	if limit > 0 && len(history) > limit {
		// Reallocate so the evicted prefix can be collected.
		history = append([]domain.Message(nil), history[len(history)-limit:]...)
	}
	c.msgs = history
	c.touched = now
	return len(history), nil
}

// Window returns a copy of the last n entries.
func (s *Store) Window(ctx context.Context, key string, n int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c := s.lookup(key, now)
	if c == nil {
		return []domain.Message{}, nil
	}
	c.touched = now

	history := c.msgs
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	return domain.CloneMessages(history), nil
}

// Len returns the number of entries stored for key.
func (s *Store) Len(ctx context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.lookup(key, s.now()); c != nil {
		return len(c.msgs), nil
	}
	return 0, nil
}

// Reset removes the conversation.
func (s *Store) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Conversations returns the number of conversations currently held.
func (s *Store) Conversations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// lookup returns the live conversation for key, dropping it if expired.
// Callers hold mu.
func (s *Store) lookup(key string, now time.Time) *conversation {
	c, ok := s.data[key]
	if !ok {
		return nil
	}
	if s.expired(c, now) {
		delete(s.data, key)
		return nil
	}
	return c
}

func (s *Store) expired(c *conversation, now time.Time) bool {
	return s.ttl > 0 && now.Sub(c.touched) > s.ttl
}

// sweep drops expired conversations, at most twice per TTL period.
func (s *Store) sweep(now time.Time) {
	if s.ttl <= 0 || now.Sub(s.lastSweep) < s.ttl/2 {
		return
	}
	s.lastSweep = now
	for key, c := range s.data {
		if s.expired(c, now) {
			delete(s.data, key)
		}
	}
}

// makeRoom evicts the least recently used conversation when full.
func (s *Store) makeRoom() {
	if s.maxConvs <= 0 || len(s.data) < s.maxConvs {
		return
	}
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, c := range s.data {
		if oldestKey == "" || c.touched.Before(oldest) {
			oldestKey, oldest = key, c.touched
		}
	}
	delete(s.data, oldestKey)
}
