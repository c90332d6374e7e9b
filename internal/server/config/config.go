// Package config handles configuration for the identity server, including
// defaults, JSON overlay, environment variables, and command-line flags.
package config

import (
	"errors"
	"time"

	"github.com/lectoria/identity/internal/server/auth"
)

// Config holds runtime settings for the identity server.
//
// Fields:
//   - EndpointAddrHTTP: bind address for the public HTTP endpoint.
//   - DatabaseDSN: PostgreSQL DSN (pgx); empty selects the in-memory store.
//   - SecretKey: HMAC secret for signing JWTs (HS256). It has no default and
//     must be provided through configuration, never embedded in source.
//   - AccessTokenValidityDuration / RefreshTokenValidityDuration: token lifetimes.
type Config struct {
	EndpointAddrHTTP             string
	DatabaseDSN                  string
	SecretKey                    string
	AccessTokenValidityDuration  time.Duration
	RefreshTokenValidityDuration time.Duration
}

// LoadDefaults populates Config with development defaults. The signing secret
// deliberately has none.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.DatabaseDSN = ""
	c.AccessTokenValidityDuration = auth.DefaultAccessTokenTTL
	c.RefreshTokenValidityDuration = auth.DefaultRefreshTokenTTL
}

// Validate reports configuration the server cannot start with.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("signing secret is not configured")
	}
	return nil
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment, and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
