package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lectoria/identity/internal/common"
	"github.com/lectoria/identity/internal/logging"
	"github.com/lectoria/identity/internal/server/sessions"
)

// SessionHandler maps the session operations onto HTTP. All transport
// concerns (marshalling, status codes) live here; the service itself never
// sees them.
type SessionHandler struct {
	sessions *sessions.Service
	logger   logging.Logger
}

func NewSessionHandler(s *sessions.Service, l logging.Logger) *SessionHandler {
	return &SessionHandler{sessions: s, logger: l.With("module", "http_handler")}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	UserName string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates a new identity. Any failure maps to 400.
func (h *SessionHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	profile, err := h.sessions.Register(c.Request.Context(), sessions.RegisterRequest{
		Name:     req.Name,
		UserName: req.UserName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.logger.Warn(c.Request.Context(), "registration rejected", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"name": profile.Name, "email": profile.Email})
}

type loginRequest struct {
	UserName string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and opens a session.
func (h *SessionHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	pair, err := h.sessions.Login(c.Request.Context(), req.UserName, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": common.ErrInvalidCredentials.Error()})
			return
		}
		h.logger.Error(c.Request.Context(), "login failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"accessToken": pair.AccessToken, "refreshToken": pair.RefreshToken})
}

// Me returns the caller's profile.
func (h *SessionHandler) Me(c *gin.Context) {
	userID, ok := CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	profile, err := h.sessions.Profile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":     profile.Name,
		"username": profile.UserName,
		"email":    profile.Email,
		"role":     profile.Role,
	})
}

// Instructors enumerates all registered identities.
func (h *SessionHandler) Instructors(c *gin.Context) {
	profiles, err := h.sessions.ListInstructors(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	out := make([]gin.H, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, gin.H{"name": p.Name, "username": p.UserName, "email": p.Email, "role": p.Role})
	}
	c.JSON(http.StatusOK, out)
}

// Tokens enumerates all stored refresh-token records.
func (h *SessionHandler) Tokens(c *gin.Context) {
	tokens, err := h.sessions.ListRefreshTokens(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	out := make([]gin.H, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, gin.H{
			"userId":    t.UserID,
			"issuedAt":  t.IssuedAt,
			"expiresAt": t.ExpiresAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh rotates the caller's session. Any failure maps to 401.
func (h *SessionHandler) Refresh(c *gin.Context) {
	userID, ok := CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	pair, err := h.sessions.Refresh(c.Request.Context(), userID, req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": common.ErrInvalidToken.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"accessToken": pair.AccessToken, "refreshToken": pair.RefreshToken})
}

// Logout closes the caller's session.
func (h *SessionHandler) Logout(c *gin.Context) {
	userID, ok := CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.sessions.Logout(c.Request.Context(), userID, req.RefreshToken); err != nil {
		if errors.Is(err, common.ErrInvalidToken) || errors.Is(err, common.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": common.ErrInvalidToken.Error()})
			return
		}
		h.logger.Error(c.Request.Context(), "logout failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
