package quota

import (
	"context"
	"sync"
	"time"

	"media-converter/internal/identity"
)

// MemoryStore keeps records in process memory with one lock per key.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
}

type memEntry struct {
	mu      sync.Mutex
	rec     Record
	present bool
	removed bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memEntry)}
}

// lock returns the entry for key with its lock held.
func (s *MemoryStore) lock(key string) *memEntry {
	for {
		s.mu.Lock()
		e, ok := s.entries[key]
		if !ok {
			e = &memEntry{}
			s.entries[key] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if !e.removed {
			return e
		}
		// Purged between lookup and lock; fetch the replacement.
		e.mu.Unlock()
	}
}

// Charge implements Store.
func (s *MemoryStore) Charge(_ context.Context, key string, tier identity.Tier, bytes, ceiling int64, now time.Time, window time.Duration) (Record, bool, error) {
	e := s.lock(key)
	defer e.mu.Unlock()

	rec := e.rec
	if !e.present || rec.Expired(now, window) {
		rec = Record{Key: key, Tier: tier, WindowStart: now}
	}

	if ceiling != Unlimited && rec.Used+bytes > ceiling {
		return rec, false, nil
	}

	rec.Used += bytes
	rec.Tier = tier
	e.rec = rec
	e.present = true
	return rec, true, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string, now time.Time, window time.Duration) (Record, bool, error) {
	s.mu.Lock()
	e, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return Record{}, false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.present || e.removed || e.rec.Expired(now, window) {
		return Record{}, false, nil
	}
	return e.rec, true, nil
}

// Purge implements Store.
func (s *MemoryStore) Purge(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, e := range s.entries {
		e.mu.Lock()
		if !e.present || e.rec.WindowStart.Before(cutoff) {
			e.removed = true
			delete(s.entries, key)
			if e.present {
				n++
			}
		}
		e.mu.Unlock()
	}
	return n, nil
}
