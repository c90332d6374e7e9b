// Package cli implements the interactive authctl client: a small REPL that
// registers, authenticates, and inspects sessions against a running identity
// server.
package cli

import (
	"bufio"
	"context"
	"os"

	"github.com/lectoria/identity/internal/client/api"
	"github.com/lectoria/identity/internal/client/config"
)

type App struct {
	config *config.Config
	client *api.Client

	// session state for the current REPL run
	accessToken  string
	refreshToken string
	userName     string

	reader *bufio.Reader
}

func NewApp(c *config.Config) *App {
	return &App{
		config: c,
		client: api.New(c.ServerEndpointAddr),
		reader: bufio.NewReader(os.Stdin),
	}
}

func (a *App) isLoggedIn() bool {
	return a.accessToken != ""
}

func (a *App) clearSession() {
	a.accessToken = ""
	a.refreshToken = ""
	a.userName = ""
}

func (a *App) Run(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.status, scanner)
}

func (a *App) status() string {
	if a.isLoggedIn() {
		return a.userName
	}
	return "not logged in"
}
