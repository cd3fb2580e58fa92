package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for single-node deployments and tests.
// Records carry the same TTL semantics as the Redis store; expiry is checked
// lazily on read.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	expires map[Record]time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, expires: make(map[Record]time.Time)}
}

func (s *MemoryStore) Put(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expires[rec] = time.Now().Add(s.ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expires, rec)
	return nil
}

func (s *MemoryStore) UserPresent(_ context.Context, room, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for rec, exp := range s.expires {
		if exp.Before(now) {
			delete(s.expires, rec)
			continue
		}
		if rec.Room == room && rec.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListUsers(_ context.Context, room string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	seen := make(map[string]struct{})
	for rec, exp := range s.expires {
		if exp.Before(now) {
			delete(s.expires, rec)
			continue
		}
		if rec.Room == room {
			seen[rec.Username] = struct{}{}
		}
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

func (s *MemoryStore) Close() error { return nil }
