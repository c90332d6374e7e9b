// Package common defines shared constants and sentinel errors used across
// the identity service. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateIdentity covers both an already-taken id/username/email and
	// a lost registration race: from the caller's perspective the slot is
	// taken either way.
	ErrDuplicateIdentity = errors.New("identity already registered")

	// ErrConflict reports a failed compare-and-set precondition on a
	// refresh-token write. Never retried internally.
	ErrConflict = errors.New("concurrent modification conflict")

	// Service-level errors.
	ErrValidation = errors.New("validation error")
	ErrInternal   = errors.New("internal error")

	// ErrInvalidCredentials deliberately covers both an unknown principal and
	// a password mismatch so responses do not leak which factor was wrong.
	ErrInvalidCredentials = errors.New("invalid login credentials")

	// ErrInvalidToken covers bad signature, malformed structure, expiry and
	// stored-hash mismatch, equally undifferentiated.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenCreation reports a signing failure, fatal for the request.
	ErrTokenCreation = errors.New("token creation failed")
)
