package throttle

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	n       int
	expires time.Time
}

// MemoryStore is a single-process Store. Use RedisStore when running more than one instance.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]counter
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]counter), now: time.Now}
}

func (s *MemoryStore) Count(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.live(key)
	if !ok {
		return 0, nil
	}
	return c.n, nil
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.live(key)
	if !ok {
		c = counter{expires: s.now().Add(window)}
	}
	c.n++
	s.entries[key] = c
	return c.n, nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// live must be called with mu held.
func (s *MemoryStore) live(key string) (counter, bool) {
	c, ok := s.entries[key]
	if !ok {
		return counter{}, false
	}
	if !s.now().Before(c.expires) {
		delete(s.entries, key)
		return counter{}, false
	}
	return c, true
}
