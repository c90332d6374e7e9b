package kv

import (
	"context"
	"iter"
	"sort"
	"strings"
	"sync"
)

type memoryEntry struct {
	value   []byte
	version int64
}

// MemoryStore is an in-memory Store used in tests and for running the server
// without a database. Versions come from a store-wide counter so a deleted
// and re-created key never repeats a version.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	counter int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return Entry{}, nil
	}
	value := make([]byte, len(e.value))
	copy(value, e.value)
	return Entry{Key: key, Value: value, Version: e.version}, nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		s.mu.RLock()
		keys := make([]string, 0, len(s.entries))
		for k := range s.entries {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		s.mu.RUnlock()
		sort.Strings(keys)

		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				yield(Entry{}, err)
				return
			}
			e, err := s.Get(ctx, k)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			// deleted between snapshot and read
			if !e.Exists() {
				continue
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (s *MemoryStore) Atomic() *Atomic {
	return newAtomic(s)
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) commit(ctx context.Context, a *Atomic) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range a.checks {
		current := NoVersion
		if e, ok := s.entries[c.key]; ok {
			current = e.version
		}
		if current != c.version {
			return ErrTxConflict
		}
	}

	for _, m := range a.mutations {
		if m.delete {
			delete(s.entries, m.key)
			continue
		}
		s.counter++
		value := make([]byte, len(m.value))
		copy(value, m.value)
		s.entries[m.key] = memoryEntry{value: value, version: s.counter}
	}

	return nil
}
