// Package config holds the CLI client configuration.
package config

import (
	"flag"
	"os"

	"github.com/lectoria/identity/internal/flagx"
)

type Config struct {
	ServerEndpointAddr string
}

func loadDefaults() *Config {
	return &Config{ServerEndpointAddr: "http://localhost:8080"}
}

func parseEnv(config *Config) {
	if addr, ok := os.LookupEnv("IDENTITY_SERVER_ENDPOINT"); ok {
		config.ServerEndpointAddr = addr
	}
}

func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-e"})

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.StringVar(&config.ServerEndpointAddr, "e", config.ServerEndpointAddr, "server endpoint address")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}

// LoadConfig applies the sources in increasing priority:
// defaults, then environment, then flags.
func LoadConfig() *Config {
	config := loadDefaults()
	parseEnv(config)
	parseFlags(config)
	return config
}
