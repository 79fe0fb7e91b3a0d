package kv

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value       []byte
	windowStart int64
	count       int64
	expiresAt   time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// sweepEvery is how many writes pass between full scans for expired keys.
const sweepEvery = 1024

// MemoryStore is an in-process [Store]. All operations serialise on one mutex,
// which keeps every per-key mutation atomic. Expired keys are dropped when
// read and by a scan every sweepEvery writes, so keys that are never read
// again still leave the map.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
	writes  int
}

// NewMemoryStore creates an empty store. now drives expiry; nil means time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:     now,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

// lookup returns the live entry for key, evicting it when expired.
// Callers must hold s.mu.
func (s *MemoryStore) lookup(key string) (memoryEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if entry.expired(s.now()) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

// put stores entry and periodically sweeps. Callers must hold s.mu.
func (s *MemoryStore) put(key string, entry memoryEntry) {
	s.entries[key] = entry
	s.writes++
	if s.writes < sweepEvery {
		return
	}
	s.writes = 0
	now := s.now()
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
		}
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lookup(key)
	if !ok || entry.value == nil {
		return nil, ErrNotFound
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(key, memoryEntry{value: stored, expiresAt: s.expiry(ttl)})
	return nil
}

func (s *MemoryStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookup(key); ok {
		return false, nil
	}
	s.put(key, memoryEntry{value: stored, expiresAt: s.expiry(ttl)})
	return true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.lookup(key)
	delete(s.entries, key)
	return ok, nil
}

func (s *MemoryStore) IncrementWindow(ctx context.Context, key string, windowStart int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lookup(key)
	if !ok || entry.windowStart != windowStart {
		s.put(key, memoryEntry{
			windowStart: windowStart,
			count:       1,
			expiresAt:   s.expiry(ttl),
		})
		return 1, nil
	}

	entry.count++
	s.entries[key] = entry
	return entry.count, nil
}
