package chat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/phrazzld/eco-queue/internal/chat"
	"github.com/phrazzld/eco-queue/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("cached entity needs no refresh", func(t *testing.T) {
		client := mocks.NewFakeChatClient()
		client.AddChat(-1001234567890, "Lenina, 10", true)
		r := chat.NewResolver(client, 0)

		peer, err := r.Resolve(ctx, -1001234567890)

		require.NoError(t, err)
		assert.Equal(t, int64(-1001234567890), peer.ID)
		assert.Equal(t, 0, client.Calls("RecentDialogs"))
	})

	t.Run("cache miss refreshes dialogs exactly once and succeeds", func(t *testing.T) {
		client := mocks.NewFakeChatClient()
		client.AddChat(-1001234567890, "Lenina, 10", false)
		r := chat.NewResolver(client, 50)

		peer, err := r.Resolve(ctx, -1001234567890)

		require.NoError(t, err)
		assert.Equal(t, "Lenina, 10", peer.Title)
		assert.Equal(t, 1, client.Calls("RecentDialogs"))
	})

	t.Run("matches id without the supergroup prefix", func(t *testing.T) {
		client := mocks.NewFakeChatClient()
		client.AddChat(-1001234567890, "Lenina, 10", false)
		r := chat.NewResolver(client, 50)

		peer, err := r.Resolve(ctx, 1234567890)

		require.NoError(t, err)
		assert.Equal(t, int64(-1001234567890), peer.ID)
		assert.Equal(t, 1, client.Calls("RecentDialogs"))
	})

	t.Run("unknown entity fails after exactly one refresh", func(t *testing.T) {
		client := mocks.NewFakeChatClient()
		client.AddChat(-1009999999999, "Other", false)
		r := chat.NewResolver(client, 50)

		_, err := r.Resolve(ctx, -1001234567890)

		require.Error(t, err)
		assert.ErrorIs(t, err, chat.ErrEntityNotFound)
		assert.Equal(t, 1, client.Calls("RecentDialogs"))
	})

	t.Run("resolved peers are served from the local cache", func(t *testing.T) {
		client := mocks.NewFakeChatClient()
		client.AddChat(-1001234567890, "Lenina, 10", false)
		r := chat.NewResolver(client, 50)

		_, err := r.Resolve(ctx, -1001234567890)
		require.NoError(t, err)
		_, err = r.Resolve(ctx, -1001234567890)
		require.NoError(t, err)

		assert.Equal(t, 1, client.Calls("RecentDialogs"))
		assert.Equal(t, 1, client.Calls("ResolvePeer"))
	})

	t.Run("non cache errors are returned without refresh", func(t *testing.T) {
		client := mocks.NewFakeChatClient()
		client.FailNext("ResolvePeer", &chat.FloodWaitError{Seconds: 12})
		r := chat.NewResolver(client, 50)

		_, err := r.Resolve(ctx, -1001234567890)

		var fw *chat.FloodWaitError
		require.True(t, errors.As(err, &fw))
		assert.Equal(t, 12, fw.Seconds)
		assert.Equal(t, 0, client.Calls("RecentDialogs"))
	})
}

func TestBareID(t *testing.T) {
	tests := []struct {
		in   int64
		want int64
	}{
		{-1001234567890, 1234567890},
		{1001234567890, 1234567890},
		{1234567890, 1234567890},
		{-123456789, 123456789},
		{-100, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, chat.BareID(tt.in), "BareID(%d)", tt.in)
	}
}
