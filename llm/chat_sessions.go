package llm

import (
	"container/list"
	"sync"
	"time"
)

// Defaults for provider-side chat history, matching the session store defaults
const (
	DefaultChatMaxSessions = 1000
	DefaultChatSessionTTL  = 24 * time.Hour
)

// chatSessions is a bounded LRU of provider chat state with an idle TTL.
// Providers keep their own history, so it must expire no later than the
// conversation store does or a reused id would replay stale turns.
type chatSessions[T any] struct {
	mu      sync.Mutex
	max     int
	ttl     time.Duration
	now     func() time.Time
	order   *list.List // front is most recently used
	entries map[string]*list.Element
}

type chatEntry[T any] struct {
	id       string
	value    T
	lastSeen time.Time
}

func newChatSessions[T any](max int, ttl time.Duration) *chatSessions[T] {
	if max <= 0 {
		max = DefaultChatMaxSessions
	}
	if ttl <= 0 {
		ttl = DefaultChatSessionTTL
	}
	return &chatSessions[T]{
		max:     max,
		ttl:     ttl,
		now:     time.Now,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// getOrCreate returns the live value for id, calling create when there is none
// or the previous one has been idle longer than the TTL
func (s *chatSessions[T]) getOrCreate(id string, create func() T) T {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if el, ok := s.entries[id]; ok {
		e := el.Value.(*chatEntry[T])
		if now.Sub(e.lastSeen) <= s.ttl {
			e.lastSeen = now
			s.order.MoveToFront(el)
			return e.value
		}
		s.remove(el)
	}

	s.expire(now)
	for s.order.Len() >= s.max {
		s.remove(s.order.Back())
	}

	e := &chatEntry[T]{id: id, value: create(), lastSeen: now}
	s.entries[id] = s.order.PushFront(e)
	return e.value
}

func (s *chatSessions[T]) delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.entries[id]; ok {
		s.remove(el)
	}
}

func (s *chatSessions[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// expire drops idle entries from the back of the list
func (s *chatSessions[T]) expire(now time.Time) {
	for el := s.order.Back(); el != nil; el = s.order.Back() {
		if now.Sub(el.Value.(*chatEntry[T]).lastSeen) <= s.ttl {
			return
		}
		s.remove(el)
	}
}

func (s *chatSessions[T]) remove(el *list.Element) {
	s.order.Remove(el)
	delete(s.entries, el.Value.(*chatEntry[T]).id)
}
