package config

import (
	"os"
	"time"
)

// Environment variable names recognized by parseEnv. The signing secret is
// normally supplied this way so it never appears on a command line or in a
// checked-in file.
const (
	EnvAddr            = "IDENTITY_ADDRESS"
	EnvDatabaseDSN     = "IDENTITY_DATABASE_DSN"
	EnvSecretKey       = "IDENTITY_SECRET_KEY"
	EnvAccessTokenTTL  = "IDENTITY_ACCESS_TOKEN_TTL"
	EnvRefreshTokenTTL = "IDENTITY_REFRESH_TOKEN_TTL"
)

// parseEnv overlays Config with values from the environment. TTLs use
// time.ParseDuration syntax ("15m", "720h"); unparsable values are ignored.
func parseEnv(config *Config) {
	if v := os.Getenv(EnvAddr); v != "" {
		config.EndpointAddrHTTP = v
	}
	if v := os.Getenv(EnvDatabaseDSN); v != "" {
		config.DatabaseDSN = v
	}
	if v := os.Getenv(EnvSecretKey); v != "" {
		config.SecretKey = v
	}
	if v := os.Getenv(EnvAccessTokenTTL); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.AccessTokenValidityDuration = d
		}
	}
	if v := os.Getenv(EnvRefreshTokenTTL); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.RefreshTokenValidityDuration = d
		}
	}
}
