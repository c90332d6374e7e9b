// Package api is a thin HTTP client for the identity server. It speaks the
// JSON wire format of the /auth endpoints and maps error responses onto
// sentinel errors the CLI can branch on.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrRejected     = errors.New("request rejected")
)

// Client calls the identity server. The zero value is not usable; construct
// one with New.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// TokenPair mirrors the server's session response.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Profile mirrors the server's identity projection.
type Profile struct {
	Name     string `json:"name"`
	UserName string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// TokenRecord mirrors one stored refresh-token record.
type TokenRecord struct {
	UserID    string    `json:"userId"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Register creates an identity on the server.
func (c *Client) Register(ctx context.Context, name, username, email string, password []byte) error {
	body := map[string]string{
		"name":     name,
		"username": username,
		"email":    email,
		"password": string(password),
	}
	return c.do(ctx, http.MethodPost, "/auth/register", body, "", nil)
}

// Login opens a session and returns the token pair.
func (c *Client) Login(ctx context.Context, username string, password []byte) (*TokenPair, error) {
	body := map[string]string{"username": username, "password": string(password)}
	var pair TokenPair
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, "", &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

// Me fetches the caller's own profile.
func (c *Client) Me(ctx context.Context, accessToken string) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, accessToken, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Instructors lists every registered identity.
func (c *Client) Instructors(ctx context.Context, accessToken string) ([]Profile, error) {
	var out []Profile
	if err := c.do(ctx, http.MethodGet, "/auth/instructors", nil, accessToken, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Tokens lists every stored refresh-token record.
func (c *Client) Tokens(ctx context.Context, accessToken string) ([]TokenRecord, error) {
	var out []TokenRecord
	if err := c.do(ctx, http.MethodGet, "/auth/tokens", nil, accessToken, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Refresh rotates the session and returns the replacement pair.
func (c *Client) Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error) {
	body := map[string]string{"refreshToken": refreshToken}
	var pair TokenPair
	if err := c.do(ctx, http.MethodPost, "/auth/refresh-token", body, accessToken, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

// Logout closes the session.
func (c *Client) Logout(ctx context.Context, accessToken, refreshToken string) error {
	body := map[string]string{"refreshToken": refreshToken}
	return c.do(ctx, http.MethodPost, "/auth/logout", body, accessToken, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, bearer string, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: %s", ErrRejected, readError(resp.Body))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readError(r io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil || payload.Error == "" {
		return "unexpected server response"
	}
	return payload.Error
}
