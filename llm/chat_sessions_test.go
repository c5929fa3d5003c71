package llm

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChatSessions(t *testing.T) {
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	newTable := func(max int, ttl time.Duration) *chatSessions[string] {
		s := newChatSessions[string](max, ttl)
		s.now = func() time.Time { return clock }
		return s
	}
	created := 0
	create := func(v string) func() string {
		return func() string {
			created++
			return v
		}
	}

	t.Run("reuses live sessions", func(t *testing.T) {
		created = 0
		s := newTable(10, time.Hour)
		assert.Equal(t, "a1", s.getOrCreate("a", create("a1")))
		assert.Equal(t, "a1", s.getOrCreate("a", create("a2")))
		assert.Equal(t, 1, created)
	})

	t.Run("evicts least recently used when full", func(t *testing.T) {
		s := newTable(2, time.Hour)
		s.getOrCreate("a", create("a"))
		s.getOrCreate("b", create("b"))
		s.getOrCreate("a", create("a-again"))
		s.getOrCreate("c", create("c"))

		assert.Equal(t, 2, s.len())
		assert.Equal(t, "a", s.getOrCreate("a", create("a-new")))
		assert.Equal(t, "b-new", s.getOrCreate("b", create("b-new")))
	})

	t.Run("stays bounded under many ids", func(t *testing.T) {
		s := newTable(5, time.Hour)
		for i := 0; i < 100; i++ {
			id := fmt.Sprintf("s%d", i)
			s.getOrCreate(id, create(id))
		}
		assert.Equal(t, 5, s.len())
	})

	t.Run("expires idle sessions", func(t *testing.T) {
		s := newTable(10, time.Hour)
		s.getOrCreate("old", create("old"))
		s.getOrCreate("other", create("other"))

		clock = clock.Add(2 * time.Hour)
		assert.Equal(t, "fresh", s.getOrCreate("old", create("fresh")))
		assert.Equal(t, 1, s.len())
	})

	t.Run("delete forgets history", func(t *testing.T) {
		s := newTable(10, time.Hour)
		s.getOrCreate("a", create("a1"))
		s.delete("a")
		s.delete("missing")
		assert.Equal(t, 0, s.len())
		assert.Equal(t, "a2", s.getOrCreate("a", create("a2")))
	})

	t.Run("zero limits fall back to defaults", func(t *testing.T) {
		s := newChatSessions[string](0, 0)
		assert.Equal(t, DefaultChatMaxSessions, s.max)
		assert.Equal(t, DefaultChatSessionTTL, s.ttl)
	})
}
