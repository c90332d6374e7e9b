package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	config := loadDefaults()
	assert.Equal(t, "http://localhost:8080", config.ServerEndpointAddr)
}

func TestParseEnv(t *testing.T) {
	t.Setenv("IDENTITY_SERVER_ENDPOINT", "http://identity.internal:9090")

	config := loadDefaults()
	parseEnv(config)

	assert.Equal(t, "http://identity.internal:9090", config.ServerEndpointAddr)
}
