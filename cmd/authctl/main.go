package main

import (
	"context"

	"github.com/lectoria/identity/internal/client/cli"
	"github.com/lectoria/identity/internal/client/config"
)

func main() {
	cfg := config.LoadConfig()
	app := cli.NewApp(cfg)
	app.Run(context.Background())
}
