package identity

import "time"

// Role tags carried by user records. Only instructors exist in the current
// scope.
const RoleInstructor = "INSTRUCTOR"

// User is the persisted identity record. The same serialized record is stored
// under its id, username, and email keys.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	UserName     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	Role         string `json:"role"`
}

// RefreshToken tracks the hash of a user's current refresh-token secret.
// At most one record exists per user; rotation replaces it wholesale.
type RefreshToken struct {
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"token_hash"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the record's expiry has passed at the given time.
func (t *RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}
