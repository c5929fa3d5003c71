//go:build integration

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"clausecheck-backend/models"
)

func newRedisStore(t *testing.T, ttl time.Duration) *RedisStore {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	store, err := NewRedisStore(ctx, url, ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t, time.Minute)

	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	conv := models.NewConversation("r1", time.Now().UTC().Truncate(time.Second))
	conv.Messages = append(conv.Messages, models.Message{Role: models.RoleUser, Content: "hello", Intent: models.IntentGeneralQuestion})
	conv.NoteIntent(models.IntentGeneralQuestion)
	require.NoError(t, store.Save(ctx, conv))

	loaded, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "hello", loaded.Messages[0].Content)
	assert.Equal(t, []models.Intent{models.IntentGeneralQuestion}, loaded.Intents)

	ttl, err := store.client.TTL(ctx, keyPrefix+"r1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Delete(ctx, "r1"))
	_, err = store.Load(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
}
