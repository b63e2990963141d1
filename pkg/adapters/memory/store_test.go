package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/agrobot/pkg/adapters/memory"
	"github.com/aretw0/agrobot/pkg/domain"
	"github.com/aretw0/agrobot/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunHistoryStoreContract(t, store)
}

func TestMemoryStore_RejectsEmptyMessage(t *testing.T) {
	store := memory.NewStore()
	_, err := store.Append(context.Background(), "k", 16, domain.Message{Role: domain.RoleUser})
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)

	n, err := store.Len(context.Background(), "k")
	require.NoError(t, err)
	assert.Zero(t, n, "a rejected append must not write anything")
}

func TestMemoryStore_AppendCopiesInput(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	msg := domain.NewTextMessage(domain.RoleUser, "original")
	_, err := store.Append(ctx, "k", 0, msg)
	require.NoError(t, err)

	msg.Parts[0].Text = "changed"

	got, err := store.Window(ctx, "k", 0)
	require.NoError(t, err)
	assert.Equal(t, "original", got[0].Text())
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Append(ctx, "shared", 16,
				domain.NewTextMessage(domain.RoleUser, fmt.Sprintf("q%d", i)),
				domain.NewTextMessage(domain.RoleModel, fmt.Sprintf("a%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	n, err := store.Len(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	// Pairs are appended atomically so roles keep alternating.
	all, err := store.Window(ctx, "shared", 0)
	require.NoError(t, err)
	for i, m := range all {
		if i%2 == 0 {
			assert.Equal(t, domain.RoleUser, m.Role)
		} else {
			assert.Equal(t, domain.RoleModel, m.Role)
		}
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func appendTurn(t *testing.T, store *memory.Store, key string) {
	t.Helper()
	_, err := store.Append(context.Background(), key, 16,
		domain.NewTextMessage(domain.RoleUser, "q"),
		domain.NewTextMessage(domain.RoleModel, "a"))
	require.NoError(t, err)
}

func TestMemoryStore_IdleConversationsExpire(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	store := memory.NewStore(memory.WithTTL(time.Hour), memory.WithClock(clock.Now))
	ctx := context.Background()

	appendTurn(t, store, "idle")
	appendTurn(t, store, "active")

	clock.Advance(40 * time.Minute)
	_, err := store.Window(ctx, "active", 0)
	require.NoError(t, err)

	clock.Advance(40 * time.Minute)
	n, err := store.Len(ctx, "idle")
	require.NoError(t, err)
	assert.Zero(t, n, "idle conversation must be gone")

	n, err = store.Len(ctx, "active")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "reads keep a conversation alive")

	// A new session's append sweeps everything that expired.
	appendTurn(t, store, "other")
	clock.Advance(2 * time.Hour)
	appendTurn(t, store, "newcomer")
	assert.Equal(t, 1, store.Conversations())
}

func TestMemoryStore_MaxConversationsEvictsLeastRecent(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	store := memory.NewStore(memory.WithMaxConversations(2), memory.WithClock(clock.Now))
	ctx := context.Background()

	appendTurn(t, store, "s1")
	clock.Advance(time.Second)
	appendTurn(t, store, "s2")
	clock.Advance(time.Second)
	_, err := store.Window(ctx, "s1", 0)
	require.NoError(t, err)
	clock.Advance(time.Second)

	for i := 0; i < 100; i++ {
		appendTurn(t, store, fmt.Sprintf("cookie-%d", i))
		clock.Advance(time.Second)
	}
	assert.Equal(t, 2, store.Conversations())

	n, err := store.Len(ctx, "cookie-99")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = store.Len(ctx, "s2")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStore_BoundedContract(t *testing.T) {
	ports.RunHistoryStoreContract(t, memory.NewStore(memory.WithTTL(time.Hour), memory.WithMaxConversations(100)))
}
