package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/agrobot/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunHistoryStoreContract runs a suite of tests to verify that a HistoryStore
// implementation adheres to the defined interface contract.
func RunHistoryStoreContract(t *testing.T, store HistoryStore) {
	ctx := context.Background()
	key := "contract-test-" + time.Now().Format("20060102150405.000000000")

	turn := func(i int) []domain.Message {
		return []domain.Message{
			domain.NewTextMessage(domain.RoleUser, fmt.Sprintf("question %d", i)),
			domain.NewTextMessage(domain.RoleModel, fmt.Sprintf("answer %d", i)),
		}
	}

	t.Run("Unknown Key Is Empty", func(t *testing.T) {
		msgs, err := store.Window(ctx, "unknown-"+key, 8)
		require.NoError(t, err)
		assert.Empty(t, msgs)

		n, err := store.Len(ctx, "unknown-"+key)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("Append and Window", func(t *testing.T) {
		k := key + "-window"
		defer func() { _ = store.Reset(ctx, k) }()

		n, err := store.Append(ctx, k, 16, turn(1)...)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, err = store.Append(ctx, k, 16, turn(2)...)
		require.NoError(t, err)

		all, err := store.Window(ctx, k, 0)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, "question 1", all[0].Text())
		assert.Equal(t, domain.RoleModel, all[3].Role)
		assert.Equal(t, "answer 2", all[3].Text())

		last, err := store.Window(ctx, k, 3)
		require.NoError(t, err)
		require.Len(t, last, 3)
		assert.Equal(t, "answer 1", last[0].Text())

		more, err := store.Window(ctx, k, 100)
		require.NoError(t, err)
		assert.Len(t, more, 4)
	})

	t.Run("Trim Drops Oldest", func(t *testing.T) {
		k := key + "-trim"
		defer func() { _ = store.Reset(ctx, k) }()

		for i := 1; i <= 9; i++ {
			n, err := store.Append(ctx, k, 16, turn(i)...)
			require.NoError(t, err)
			assert.LessOrEqual(t, n, 16)
		}

		n, err := store.Len(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, 16, n)

		all, err := store.Window(ctx, k, 0)
		require.NoError(t, err)
		require.Len(t, all, 16)
		assert.Equal(t, "question 2", all[0].Text(), "first turn must be evicted")
		assert.Equal(t, "answer 9", all[15].Text())
	})

	t.Run("Images Survive", func(t *testing.T) {
		k := key + "-image"
		defer func() { _ = store.Reset(ctx, k) }()

		img := &domain.Image{Data: []byte{0xff, 0xd8, 0xff}, MIMEType: "image/jpeg", Width: 1, Height: 1}
		user := domain.Message{Role: domain.RoleUser, Parts: []domain.Part{domain.ImagePart(img), domain.TextPart("what is this?")}}
		_, err := store.Append(ctx, k, 16, user, domain.NewTextMessage(domain.RoleModel, "a leaf"))
		require.NoError(t, err)

		all, err := store.Window(ctx, k, 0)
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.True(t, all[0].HasImage())
		assert.Equal(t, img.Data, all[0].Parts[0].Image.Data)
		assert.Equal(t, "what is this?", all[0].Text())
	})

	t.Run("Reads Are Isolated", func(t *testing.T) {
		k := key + "-isolation"
		defer func() { _ = store.Reset(ctx, k) }()

		_, err := store.Append(ctx, k, 16, turn(1)...)
		require.NoError(t, err)

		got, err := store.Window(ctx, k, 0)
		require.NoError(t, err)
		got[0].Parts[0].Text = "mutated"

		again, err := store.Window(ctx, k, 0)
		require.NoError(t, err)
		assert.Equal(t, "question 1", again[0].Text())
	})

	t.Run("Reset", func(t *testing.T) {
		k := key + "-reset"
		_, err := store.Append(ctx, k, 16, turn(1)...)
		require.NoError(t, err)

		require.NoError(t, store.Reset(ctx, k))

		n, err := store.Len(ctx, k)
		require.NoError(t, err)
		assert.Zero(t, n)

		assert.NoError(t, store.Reset(ctx, k), "Reset of an empty conversation is a no-op")
	})
}
