// Package auth mints and validates the signed tokens that carry a session's
// subject. Tokens are HS256 JWTs; the signing secret is process-wide
// configuration fixed at construction time.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lectoria/identity/internal/common"
)

const (
	// DefaultAccessTokenTTL is the default lifetime of an access token.
	DefaultAccessTokenTTL = 15 * time.Minute
	// DefaultRefreshTokenTTL is the default lifetime of a refresh token.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// Claims are the assertions carried by both token kinds: a subject (the user
// identifier), issued-at, and expiry.
type Claims struct {
	jwt.RegisteredClaims
}

// Issuer creates and validates signed tokens. Safe for concurrent use; the
// secret is read-only after construction.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewIssuer builds an Issuer. Zero TTLs fall back to the defaults.
func NewIssuer(secret []byte, accessTTL, refreshTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &Issuer{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// AccessTokenTTL reports the configured access token lifetime.
func (i *Issuer) AccessTokenTTL() time.Duration { return i.accessTTL }

// RefreshTokenTTL reports the configured refresh token lifetime.
func (i *Issuer) RefreshTokenTTL() time.Duration { return i.refreshTTL }

// IssueAccessToken mints a short-lived token asserting subject.
func (i *Issuer) IssueAccessToken(subject string) (string, error) {
	return i.issue(subject, i.accessTTL)
}

// IssueRefreshToken mints a longer-lived token asserting subject. The caller
// is responsible for hashing it before persisting; the issuer stores nothing.
func (i *Issuer) IssueRefreshToken(subject string) (string, error) {
	return i.issue(subject, i.refreshTTL)
}

func (i *Issuer) issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			// jti keeps tokens minted within the same second distinct, so a
			// rotated refresh token can never equal its predecessor.
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrTokenCreation, err)
	}

	return signed, nil
}

// Validate verifies signature and expiry and returns the claims. Bad
// signature, malformed structure, and expiry all surface as
// common.ErrInvalidToken; callers must not distinguish them.
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
