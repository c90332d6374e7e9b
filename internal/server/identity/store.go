// Package identity persists user and refresh-token records on top of the kv
// store. Uniqueness of id, username, and email is enforced by writing the
// same record under all three keys inside one atomic transaction: the store's
// all-or-nothing version check is the only concurrency primitive needed.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lectoria/identity/internal/common"
	"github.com/lectoria/identity/internal/server/kv"
)

// Key namespaces. identity/<id>, identity/<username>, and identity/<email>
// map to the same serialized User; session/<userID> maps to a RefreshToken.
const (
	identityPrefix = "identity/"
	sessionPrefix  = "session/"
)

// Store owns all persisted identity data. It holds no state of its own beyond
// the kv handle and is safe for concurrent use.
type Store struct {
	kv kv.Store
}

func NewStore(s kv.Store) *Store {
	return &Store{kv: s}
}

// newULID returns a lexicographically sortable identifier.
func newULID(now time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now.UTC()), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// CreateUser assigns the candidate a fresh id and commits it under its id,
// username, and email keys in one transaction. If any key is taken, or a
// concurrent registration wins the race, the whole transaction aborts with
// common.ErrDuplicateIdentity and nothing is written. No retry is attempted.
func (s *Store) CreateUser(ctx context.Context, user *User) (*User, error) {
	id, err := newULID(time.Now())
	if err != nil {
		return nil, fmt.Errorf("id generation error: %w", err)
	}
	user.ID = id

	keys := []string{
		identityPrefix + user.ID,
		identityPrefix + user.UserName,
		identityPrefix + user.Email,
	}

	tx := s.kv.Atomic()
	for _, key := range keys {
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if entry.Exists() {
			return nil, common.ErrDuplicateIdentity
		}
		tx.Check(key, entry.Version)
	}

	data, err := json.Marshal(user)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		tx.Set(key, data)
	}

	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, kv.ErrTxConflict) {
			return nil, common.ErrDuplicateIdentity
		}
		return nil, err
	}

	return user, nil
}

// GetUser looks up a user by any of its three keys: id, username, or email.
func (s *Store) GetUser(ctx context.Context, key string) (*User, error) {
	entry, err := s.kv.Get(ctx, identityPrefix+key)
	if err != nil {
		return nil, err
	}
	if !entry.Exists() {
		return nil, common.ErrNotFound
	}

	user := &User{}
	if err := json.Unmarshal(entry.Value, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers iterates all user records in key order. Each user is stored under
// three keys, so records are de-duplicated by id; a user appears once, at its
// first key.
func (s *Store) ListUsers(ctx context.Context) iter.Seq2[*User, error] {
	return func(yield func(*User, error) bool) {
		seen := make(map[string]struct{})
		for entry, err := range s.kv.List(ctx, identityPrefix) {
			if err != nil {
				yield(nil, err)
				return
			}
			user := &User{}
			if err := json.Unmarshal(entry.Value, user); err != nil {
				yield(nil, err)
				return
			}
			if _, ok := seen[user.ID]; ok {
				continue
			}
			seen[user.ID] = struct{}{}
			if !yield(user, nil) {
				return
			}
		}
	}
}

// GetRefreshToken returns the live record for userID or common.ErrNotFound.
func (s *Store) GetRefreshToken(ctx context.Context, userID string) (*RefreshToken, error) {
	entry, err := s.kv.Get(ctx, sessionPrefix+userID)
	if err != nil {
		return nil, err
	}
	if !entry.Exists() {
		return nil, common.ErrNotFound
	}

	token := &RefreshToken{}
	if err := json.Unmarshal(entry.Value, token); err != nil {
		return nil, err
	}
	return token, nil
}

// ListRefreshTokens iterates all refresh-token records in key order.
func (s *Store) ListRefreshTokens(ctx context.Context) iter.Seq2[*RefreshToken, error] {
	return func(yield func(*RefreshToken, error) bool) {
		for entry, err := range s.kv.List(ctx, sessionPrefix) {
			if err != nil {
				yield(nil, err)
				return
			}
			token := &RefreshToken{}
			if err := json.Unmarshal(entry.Value, token); err != nil {
				yield(nil, err)
				return
			}
			if !yield(token, nil) {
				return
			}
		}
	}
}

// PutRefreshToken atomically replaces the record for userID, creating it if
// absent. The write is a read-check-write: if another writer commits between
// the read and the commit, common.ErrConflict is returned and the caller
// decides whether to retry.
func (s *Store) PutRefreshToken(ctx context.Context, userID, tokenHash string, issuedAt, expiresAt time.Time) error {
	key := sessionPrefix + userID

	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}

	data, err := json.Marshal(&RefreshToken{
		UserID:    userID,
		TokenHash: tokenHash,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return err
	}

	err = s.kv.Atomic().Check(key, entry.Version).Set(key, data).Commit(ctx)
	if errors.Is(err, kv.ErrTxConflict) {
		return common.ErrConflict
	}
	return err
}

// DeleteRefreshToken removes the record for userID with the same optimistic
// check. It reports false instead of failing when the record is already
// absent or was raced away, which is acceptable for logout.
func (s *Store) DeleteRefreshToken(ctx context.Context, userID string) (bool, error) {
	key := sessionPrefix + userID

	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !entry.Exists() {
		return false, nil
	}

	err = s.kv.Atomic().Check(key, entry.Version).Delete(key).Commit(ctx)
	if errors.Is(err, kv.ErrTxConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
