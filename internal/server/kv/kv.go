// Package kv implements a versioned key-value store with optimistic-concurrency
// atomic transactions. Every stored entry carries a version that changes on
// each write; a transaction commits only if every checked key still has the
// version the caller observed, otherwise the whole transaction aborts.
package kv

import (
	"context"
	"errors"
	"iter"
)

// NoVersion is the version reported for an absent key. Checking a key against
// NoVersion asserts that it does not exist at commit time.
const NoVersion int64 = 0

// ErrTxConflict is returned by Commit when any check fails: a checked key was
// modified (or created) since the version was read. The transaction has no
// effect in that case.
var ErrTxConflict = errors.New("kv: transaction conflict")

// Entry is a single stored record. An absent key is represented by a zero
// Entry with Version == NoVersion and a nil Value.
type Entry struct {
	Key     string
	Value   []byte
	Version int64
}

// Exists reports whether the entry represents a stored value.
func (e Entry) Exists() bool {
	return e.Version != NoVersion
}

// Store is a versioned key-value store. Implementations must be safe for
// unlimited concurrent callers; every mutation goes through Atomic.
type Store interface {
	// Get returns the entry for key. An absent key yields a zero Entry and
	// no error.
	Get(ctx context.Context, key string) (Entry, error)

	// List returns a lazy, restartable iterator over all entries whose key
	// starts with prefix, in ascending key order. Ranging again re-reads the
	// store.
	List(ctx context.Context, prefix string) iter.Seq2[Entry, error]

	// Atomic starts a new transaction against this store.
	Atomic() *Atomic

	// Close releases underlying resources.
	Close() error
}

type check struct {
	key     string
	version int64
}

type mutation struct {
	key    string
	value  []byte // nil means delete
	delete bool
}

// Atomic accumulates checks and mutations and applies them in a single
// all-or-nothing commit.
//
//	err := store.Atomic().
//		Check(userKey, userEntry.Version).
//		Set(userKey, data).
//		Commit(ctx)
type Atomic struct {
	store     committer
	checks    []check
	mutations []mutation
}

// committer is implemented by each Store backend.
type committer interface {
	commit(ctx context.Context, a *Atomic) error
}

func newAtomic(c committer) *Atomic {
	return &Atomic{store: c}
}

// Check asserts that key still has the given version at commit time.
// Use NoVersion to assert absence.
func (a *Atomic) Check(key string, version int64) *Atomic {
	a.checks = append(a.checks, check{key: key, version: version})
	return a
}

// Set writes value under key as part of the transaction.
func (a *Atomic) Set(key string, value []byte) *Atomic {
	a.mutations = append(a.mutations, mutation{key: key, value: value})
	return a
}

// Delete removes key as part of the transaction. Deleting an absent key is
// not an error.
func (a *Atomic) Delete(key string) *Atomic {
	a.mutations = append(a.mutations, mutation{key: key, delete: true})
	return a
}

// Commit applies the transaction. It returns ErrTxConflict if any check
// fails; no partial writes survive a failed commit.
func (a *Atomic) Commit(ctx context.Context) error {
	return a.store.commit(ctx, a)
}
