// Package http exposes the session service over HTTP. The core never sees
// transport concerns; this layer resolves caller identity from bearer tokens
// and maps failures onto status codes.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lectoria/identity/internal/logging"
	"github.com/lectoria/identity/internal/server/auth"
)

// NewRouter wires routes and middleware.
func NewRouter(handler *SessionHandler, issuer *auth.Issuer, log logging.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log.With("module", "http")))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", handler.Register)
		authGroup.POST("/login", handler.Login)

		protected := authGroup.Group("", BearerAuth(issuer))
		{
			protected.GET("/me", handler.Me)
			protected.GET("/instructors", handler.Instructors)
			protected.GET("/tokens", handler.Tokens)
			protected.POST("/refresh-token", handler.Refresh)
			protected.POST("/logout", handler.Logout)
		}
	}

	return r
}

// Server runs the HTTP endpoint with graceful shutdown.
type Server struct {
	address string
	engine  *gin.Engine
	logger  logging.Logger
}

func NewServer(address string, engine *gin.Engine, log logging.Logger) *Server {
	return &Server{address: address, engine: engine, logger: log.With("module", "http_server")}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
