package cooldown

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps cooldown state in process memory. Mutations on one key
// are serialised by that key's mutex; distinct keys never contend beyond a
// short map lookup.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]*entry
	now     func() time.Time
	idleTTL time.Duration
}

type entry struct {
	mu      sync.Mutex
	rec     Record
	touched time.Time
	dead    bool // set by Sweep once the entry left the map
}

// current is the entry's record as of now. Usage left untouched for the
// idle TTL is forgotten.
func (e *entry) current(now time.Time, idleTTL time.Duration) Record {
	rec := e.rec.settle(now)
	if !rec.onCooldown(now) && now.Sub(e.touched) >= idleTTL {
		return Record{}
	}
	return rec
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		entries: make(map[Key]*entry),
		now:     o.now,
		idleTTL: o.idleTTL,
	}
}

// acquire returns the live entry for key, locked.
func (s *MemoryStore) acquire(key Key) *entry {
	for {
		s.mu.RLock()
		e, ok := s.entries[key]
		s.mu.RUnlock()

		if !ok {
			s.mu.Lock()
			if e, ok = s.entries[key]; !ok {
				e = &entry{}
				s.entries[key] = e
			}
			s.mu.Unlock()
		}

		e.mu.Lock()
		if !e.dead {
			return e
		}
		e.mu.Unlock()
	}
}

// snapshot reads a key without creating it.
func (s *MemoryStore) snapshot(key Key) Record {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return Record{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return Record{}
	}
	return e.current(s.now(), s.idleTTL)
}

func (s *MemoryStore) update(key Key, fn func(rec Record, now time.Time) Record) error {
	if err := key.validate(); err != nil {
		return err
	}
	e := s.acquire(key)
	defer e.mu.Unlock()

	now := s.now()
	e.rec = fn(e.current(now, s.idleTTL), now)
	e.touched = now
	return nil
}

func (s *MemoryStore) IsOnCooldown(_ context.Context, key Key) (bool, error) {
	return s.snapshot(key).onCooldown(s.now()), nil
}

func (s *MemoryStore) TimeLeft(_ context.Context, key Key) (time.Duration, error) {
	rec := s.snapshot(key)
	now := s.now()
	if !rec.onCooldown(now) {
		return 0, nil
	}
	return rec.ExpiresAt.Sub(now), nil
}

func (s *MemoryStore) UsageCount(_ context.Context, key Key) (int, error) {
	return s.snapshot(key).Usage, nil
}

func (s *MemoryStore) RecordUsage(_ context.Context, key Key) error {
	return s.update(key, func(rec Record, _ time.Time) Record {
		rec.Usage++
		return rec
	})
}

func (s *MemoryStore) ResetUsage(_ context.Context, key Key) error {
	return s.update(key, func(rec Record, _ time.Time) Record {
		rec.Usage = 0
		return rec
	})
}

func (s *MemoryStore) StartCooldown(_ context.Context, key Key, d time.Duration) error {
	if d <= 0 {
		return ErrInvalidPolicy
	}
	return s.update(key, func(rec Record, now time.Time) Record {
		rec.ExpiresAt = now.Add(d)
		return rec
	})
}

func (s *MemoryStore) Consume(_ context.Context, key Key, p Policy) (Verdict, error) {
	if err := p.validate(); err != nil {
		return Verdict{}, err
	}
	if err := key.validate(); err != nil {
		return Verdict{}, err
	}

	e := s.acquire(key)
	defer e.mu.Unlock()

	now := s.now()
	var v Verdict
	e.rec, v = consume(e.current(now, s.idleTTL), now, p)
	e.touched = now
	return v, nil
}

// Sweep removes keys that are idle: no open window and no usage recorded
// within the idle TTL.
// Entries currently held by another goroutine are left for the next pass.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if !e.mu.TryLock() {
			continue
		}
		e.rec = e.current(now, s.idleTTL)
		if e.rec.idle() {
			e.dead = true
			delete(s.entries, key)
			removed++
		}
		e.mu.Unlock()
	}
	return removed, nil
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
