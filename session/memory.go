package session

import (
	"container/list"
	"context"
	"sync"
	"time"

	"clausecheck-backend/models"
)

const (
	defaultMaxSessions = 1000
	defaultTTL         = 24 * time.Hour
)

type memoryEntry struct {
	conv     *models.Conversation
	lastSeen time.Time
}

// MemoryStore is a bounded in-process store. The least recently used session is
// evicted once MaxSessions is reached, and sessions idle longer than the TTL expire.
type MemoryStore struct {
	mu          sync.Mutex
	ll          *list.List
	items       map[string]*list.Element
	maxSessions int
	ttl         time.Duration
	now         func() time.Time
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// MemoryWithMaxSessions bounds the number of live sessions
func MemoryWithMaxSessions(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// MemoryWithTTL sets the idle expiry
func MemoryWithTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// MemoryWithClock overrides time.Now
func MemoryWithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty store
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		ll:          list.New(),
		items:       make(map[string]*list.Element),
		maxSessions: defaultMaxSessions,
		ttl:         defaultTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns a copy of the stored conversation
func (s *MemoryStore) Load(_ context.Context, sessionID string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	entry := el.Value.(*memoryEntry)
	if s.now().Sub(entry.lastSeen) > s.ttl {
		s.removeElement(el)
		return nil, ErrNotFound
	}

	entry.lastSeen = s.now()
	s.ll.MoveToFront(el)
	return cloneConversation(entry.conv), nil
}

// Save stores a copy of conv, evicting the least recently used session when full
func (s *MemoryStore) Save(_ context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if el, ok := s.items[conv.SessionID]; ok {
		entry := el.Value.(*memoryEntry)
		entry.conv = cloneConversation(conv)
		entry.lastSeen = now
		s.ll.MoveToFront(el)
		return nil
	}

	s.expire(now)
	for s.ll.Len() >= s.maxSessions {
		s.removeElement(s.ll.Back())
	}
	el := s.ll.PushFront(&memoryEntry{conv: cloneConversation(conv), lastSeen: now})
	s.items[conv.SessionID] = el
	return nil
}

// Delete removes a session. Deleting an unknown session is not an error.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[sessionID]; ok {
		s.removeElement(el)
	}
	return nil
}

// Len reports the number of stored sessions, including expired ones not yet swept
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ll.Len()
}

// expire drops idle sessions from the tail. Caller holds mu.
func (s *MemoryStore) expire(now time.Time) {
	for el := s.ll.Back(); el != nil; {
		entry := el.Value.(*memoryEntry)
		if now.Sub(entry.lastSeen) <= s.ttl {
			return
		}
		prev := el.Prev()
		s.removeElement(el)
		el = prev
	}
}

func (s *MemoryStore) removeElement(el *list.Element) {
	entry := s.ll.Remove(el).(*memoryEntry)
	delete(s.items, entry.conv.SessionID)
}

func cloneConversation(c *models.Conversation) *models.Conversation {
	out := *c
	out.Messages = append([]models.Message(nil), c.Messages...)
	out.Intents = append([]models.Intent(nil), c.Intents...)
	out.Context = make(map[string]interface{}, len(c.Context))
	for k, v := range c.Context {
		out.Context[k] = v
	}
	return &out
}
