// Package sessions orchestrates the identity lifecycle: register, login,
// refresh-rotate, and logout. The service keeps no state of its own; every
// session transition lives in the identity store, so any number of instances
// can serve concurrent callers.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/lectoria/identity/internal/common"
	"github.com/lectoria/identity/internal/server/auth"
	"github.com/lectoria/identity/internal/server/identity"
	"github.com/lectoria/identity/internal/server/secrets"
)

const minPasswordLength = 8

// TokenPair bundles a short-lived access token and a longer-lived refresh
// token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Profile is the read-only projection of a user record exposed to callers.
type Profile struct {
	Name     string
	UserName string
	Email    string
	Role     string
}

// RegisteredProfile is the minimal acknowledgement returned by Register.
type RegisteredProfile struct {
	Name  string
	Email string
}

// Service composes the identity store, the secret hashers, and the token
// issuer. Passwords and refresh-token secrets go through the same hashing
// primitive with separate cost parameters.
type Service struct {
	store          *identity.Store
	passwordHasher *secrets.Hasher
	tokenHasher    *secrets.Hasher
	issuer         *auth.Issuer
}

func NewService(store *identity.Store, passwordHasher, tokenHasher *secrets.Hasher, issuer *auth.Issuer) *Service {
	return &Service{
		store:          store,
		passwordHasher: passwordHasher,
		tokenHasher:    tokenHasher,
		issuer:         issuer,
	}
}

// RegisterRequest carries the candidate identity for Register.
type RegisterRequest struct {
	Name     string
	UserName string
	Email    string
	Password string
}

func (r *RegisterRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", common.ErrValidation)
	}
	if strings.TrimSpace(r.UserName) == "" || strings.ContainsAny(r.UserName, " \t") {
		return fmt.Errorf("%w: invalid username", common.ErrValidation)
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return fmt.Errorf("%w: invalid email", common.ErrValidation)
	}
	if len(r.Password) < minPasswordLength {
		return fmt.Errorf("%w: password too short", common.ErrValidation)
	}
	return nil
}

// Register validates the candidate, hashes the password, and creates the
// identity. Uniqueness violations, including lost registration races, surface
// as common.ErrDuplicateIdentity; the caller decides whether to retry.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisteredProfile, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	hash, err := s.passwordHasher.Hash(req.Password)
	if err != nil {
		return nil, common.ErrInternal
	}

	user, err := s.store.CreateUser(ctx, &identity.User{
		Name:         req.Name,
		UserName:     req.UserName,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         identity.RoleInstructor,
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateIdentity) || errors.Is(err, common.ErrConflict) {
			return nil, common.ErrDuplicateIdentity
		}
		return nil, err
	}

	return &RegisteredProfile{Name: user.Name, Email: user.Email}, nil
}

// Login verifies the credentials and opens a session: a new token pair is
// minted and the refresh token's hash is stored. An unknown username and a
// wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	user, err := s.store.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, common.ErrInternal
	}

	if !s.passwordHasher.Verify(password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	return s.openSession(ctx, user.ID)
}

// Profile returns the public projection of the user record.
func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{Name: user.Name, UserName: user.UserName, Email: user.Email, Role: user.Role}, nil
}

// ListInstructors enumerates all registered identities as profiles.
func (s *Service) ListInstructors(ctx context.Context) ([]Profile, error) {
	profiles := []Profile{}
	for user, err := range s.store.ListUsers(ctx) {
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, Profile{
			Name:     user.Name,
			UserName: user.UserName,
			Email:    user.Email,
			Role:     user.Role,
		})
	}
	return profiles, nil
}

// ListRefreshTokens enumerates all stored refresh-token records.
func (s *Service) ListRefreshTokens(ctx context.Context) ([]identity.RefreshToken, error) {
	tokens := []identity.RefreshToken{}
	for token, err := range s.store.ListRefreshTokens(ctx) {
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *token)
	}
	return tokens, nil
}

// Refresh rotates the session: the presented token is checked against the
// stored hash and, on success, a new pair is minted and the record replaced.
// The old refresh token is unusable the moment the new record is stored. A
// failed verification leaves the current record intact. Missing records
// surface as common.ErrNotFound, everything else about a bad token as
// common.ErrInvalidToken.
func (s *Service) Refresh(ctx context.Context, userID, presentedToken string) (*TokenPair, error) {
	if err := s.verifyPresented(ctx, userID, presentedToken); err != nil {
		return nil, err
	}
	return s.openSession(ctx, userID)
}

// Logout verifies the presented token the same way Refresh does and deletes
// the record, closing the session. A record already gone is not an error.
func (s *Service) Logout(ctx context.Context, userID, presentedToken string) error {
	if err := s.verifyPresented(ctx, userID, presentedToken); err != nil {
		return err
	}

	_, err := s.store.DeleteRefreshToken(ctx, userID)
	return err
}

// verifyPresented loads the user's current refresh-token record and checks
// the presented token against its hash. Expired records are only discovered
// here; there is no proactive cleanup.
func (s *Service) verifyPresented(ctx context.Context, userID, presentedToken string) error {
	record, err := s.store.GetRefreshToken(ctx, userID)
	if err != nil {
		return err
	}

	if record.Expired(time.Now()) {
		return common.ErrInvalidToken
	}
	if !s.tokenHasher.Verify(presentedToken, record.TokenHash) {
		return common.ErrInvalidToken
	}
	return nil
}

// openSession mints a fresh token pair and stores the refresh token's hash,
// replacing any prior record for the user.
func (s *Service) openSession(ctx context.Context, userID string) (*TokenPair, error) {
	accessToken, err := s.issuer.IssueAccessToken(userID)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.issuer.IssueRefreshToken(userID)
	if err != nil {
		return nil, err
	}

	tokenHash, err := s.tokenHasher.Hash(refreshToken)
	if err != nil {
		return nil, common.ErrInternal
	}

	now := time.Now().UTC()
	if err := s.store.PutRefreshToken(ctx, userID, tokenHash, now, now.Add(s.issuer.RefreshTokenTTL())); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
