package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/agrobot/internal/logging"
	"github.com/aretw0/agrobot/pkg/domain"
	"github.com/aretw0/agrobot/pkg/ports"
)

// SyncMode selects how concurrent turns of one conversation are handled.
type SyncMode string

const (
	// SyncLocked holds a per-conversation lock from history read to append.
	SyncLocked SyncMode = "locked"
	// SyncNone lets turns interleave; store operations stay individually safe.
	SyncNone SyncMode = "none"
)

// Scope selects how requests map to conversations.
type Scope string

const (
	// ScopeGlobal shares one conversation across every request of the process.
	ScopeGlobal Scope = "global"
	// ScopeSession keys the conversation by the caller's session identifier.
	ScopeSession Scope = "session"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 2 * time.Minute

// ParseSyncMode validates a sync mode name.
func ParseSyncMode(s string) (SyncMode, error) {
	switch m := SyncMode(strings.ToLower(strings.TrimSpace(s))); m {
	case SyncLocked, SyncNone:
		return m, nil
	case "":
		return SyncLocked, nil
	default:
		return "", fmt.Errorf("unknown history sync mode %q (want %q or %q)", s, SyncLocked, SyncNone)
	}
}

// ParseScope validates a scope name.
func ParseScope(s string) (Scope, error) {
	switch sc := Scope(strings.ToLower(strings.TrimSpace(s))); sc {
	case ScopeGlobal, ScopeSession:
		return sc, nil
	case "":
		return ScopeGlobal, nil
	default:
		return "", fmt.Errorf("unknown history scope %q (want %q or %q)", s, ScopeGlobal, ScopeSession)
	}
}

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates access to conversation history.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store    ports.HistoryStore
	maxTurns int
	mode     SyncMode
	scope    Scope

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithMaxTurns sets how many user/model pairs are retained (minimum 1).
func WithMaxTurns(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxTurns = n
		}
	}
}

// WithSyncMode selects the concurrency policy.
func WithSyncMode(mode SyncMode) Option {
	return func(m *Manager) {
		m.mode = mode
	}
}

// WithScope selects how conversations are keyed.
func WithScope(scope Scope) Option {
	return func(m *Manager) {
		m.scope = scope
	}
}

// WithLocker enables distributed locking in SyncLocked mode.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(m *Manager) {
		m.locker = locker
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a history Manager over the given store.
func NewManager(store ports.HistoryStore, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		maxTurns: domain.DefaultMaxTurns,
		mode:     SyncLocked,
		scope:    ScopeGlobal,
		locks:    make(map[string]*lockEntry),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MaxTurns returns the number of retained turns.
func (m *Manager) MaxTurns() int { return m.maxTurns }

// Capacity returns the maximum number of stored entries (two per turn).
func (m *Manager) Capacity() int { return 2 * m.maxTurns }

// SyncMode returns the active concurrency policy.
func (m *Manager) SyncMode() SyncMode { return m.mode }

// Scope returns the active conversation scope.
func (m *Manager) Scope() Scope { return m.scope }

// ConversationID maps a caller session to the history key.
// In global scope, or when no session is known, every caller shares one conversation.
func (m *Manager) ConversationID(sessionID string) string {
	if m.scope == ScopeGlobal || sessionID == "" {
		return domain.GlobalConversation
	}
	return sessionID
}

// Window returns the last n entries of the conversation.
func (m *Manager) Window(ctx context.Context, conversationID string, n int) ([]domain.Message, error) {
	msgs, err := m.store.Window(ctx, conversationID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return msgs, nil
}

// Append records a completed turn and trims the conversation to Capacity.
// It is the only mutator of history; callers append only after a successful model call.
func (m *Manager) Append(ctx context.Context, conversationID string, user, model domain.Message) (int, error) {
	if user.Role != domain.RoleUser || model.Role != domain.RoleModel {
		return 0, fmt.Errorf("invalid turn roles %q/%q", user.Role, model.Role)
	}
	n, err := m.store.Append(ctx, conversationID, m.Capacity(), user, model)
	if err != nil {
		return 0, fmt.Errorf("failed to append history: %w", err)
	}
	return n, nil
}

// Len returns the number of stored entries.
func (m *Manager) Len(ctx context.Context, conversationID string) (int, error) {
	return m.store.Len(ctx, conversationID)
}

// Reset clears the conversation, waiting for an in-flight turn when locked.
func (m *Manager) Reset(ctx context.Context, conversationID string) error {
	return m.WithLock(ctx, conversationID, func(ctx context.Context) error {
		return m.store.Reset(ctx, conversationID)
	})
}

// Store returns the underlying history store.
func (m *Manager) Store() ports.HistoryStore {
	return m.store
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// WithLock runs fn as one turn of the conversation.
// In SyncLocked mode turns of the same conversation never overlap; in SyncNone
// mode fn runs immediately.
func (m *Manager) WithLock(ctx context.Context, conversationID string, fn func(context.Context) error) error {
	if m.mode == SyncNone {
		return fn(ctx)
	}

	entry := m.acquire(conversationID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(conversationID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, conversationID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// The request context may already be canceled; release with a fresh one.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := unlock(releaseCtx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"conversation_id", conversationID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
