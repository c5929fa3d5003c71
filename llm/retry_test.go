package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		out, err := withRetry(ctx, time.Millisecond, func() (string, error) {
			calls++
			if calls < 3 {
				return "", &StatusError{Provider: "p", StatusCode: http.StatusServiceUnavailable}
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
		assert.Equal(t, 3, calls)
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		calls := 0
		_, err := withRetry(ctx, time.Millisecond, func() (string, error) {
			calls++
			return "", &StatusError{Provider: "p", StatusCode: http.StatusUnauthorized}
		})
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		_, err := withRetry(ctx, time.Millisecond, func() (string, error) {
			calls++
			return "", errors.New("boom")
		})
		assert.ErrorContains(t, err, "failed after 3 attempts")
		assert.Equal(t, maxRetries, calls)
	})

	t.Run("stops when cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		_, err := withRetry(cctx, time.Hour, func() (string, error) {
			calls++
			cancel()
			return "", errors.New("boom")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

type countingChat struct {
	stubProvider
	chats   int
	cleared string
}

func (c *countingChat) Chat(context.Context, string, string) (string, error) {
	c.chats++
	return "hi", nil
}

func (c *countingChat) ClearSession(id string) { c.cleared = id }

func TestRateLimited(t *testing.T) {
	p := &stubProvider{reply: "ok"}
	assert.Same(t, Provider(p), RateLimited(p, 0, 1))

	limited := RateLimited(p, 1000, 1)
	out, err := limited.Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "stub", limited.Name())
	_, isChat := limited.(ChatProvider)
	assert.False(t, isChat)

	chat := &countingChat{}
	wrapped, ok := RateLimited(chat, 1000, 1).(ChatProvider)
	require.True(t, ok)
	_, err = wrapped.Chat(context.Background(), "s1", "hello")
	require.NoError(t, err)
	wrapped.ClearSession("s1")
	assert.Equal(t, 1, chat.chats)
	assert.Equal(t, "s1", chat.cleared)
}

func TestRateLimitedHonoursContext(t *testing.T) {
	limited := RateLimited(&stubProvider{reply: "ok"}, 0.001, 1)
	_, err := limited.Complete(context.Background(), "s", "u")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = limited.Complete(ctx, "s", "u")
	assert.ErrorContains(t, err, "rate limiter")
}
