// Package server initializes and runs the identity server: it wires the
// store, hashers, token issuer, and session service together, starts the
// HTTP endpoint, and handles graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/lectoria/identity/internal/logging"
	"github.com/lectoria/identity/internal/server/auth"
	"github.com/lectoria/identity/internal/server/config"
	httptransport "github.com/lectoria/identity/internal/server/http"
	"github.com/lectoria/identity/internal/server/identity"
	"github.com/lectoria/identity/internal/server/kv"
	"github.com/lectoria/identity/internal/server/secrets"
	"github.com/lectoria/identity/internal/server/sessions"
)

type App struct {
	config *config.Config
	logger logging.Logger
	store  kv.Store
	server *httptransport.Server
}

func NewApp(c *config.Config) (*App, error) {
	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	var store kv.Store
	if c.DatabaseDSN != "" {
		pg, err := kv.NewPostgresStore(c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		store = pg
	} else {
		logger.Warn(context.Background(), "No database DSN configured, using in-memory store")
		store = kv.NewMemoryStore()
	}

	issuer := auth.NewIssuer([]byte(c.SecretKey), c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)
	service := sessions.NewService(
		identity.NewStore(store),
		secrets.New(secrets.DefaultParams()),
		secrets.New(secrets.TokenParams()),
		issuer,
	)

	handler := httptransport.NewSessionHandler(service, logger)
	router := httptransport.NewRouter(handler, issuer, logger)
	server := httptransport.NewServer(c.EndpointAddrHTTP, router, logger)

	return &App{config: c, logger: logger, store: store, server: server}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.store.Close(); err != nil {
		app.logger.Error(ctx, "store close error", "error", err.Error())
	}
}
