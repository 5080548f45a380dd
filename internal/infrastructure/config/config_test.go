package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func required() map[string]string {
	return map[string]string{
		"BACKEND_URL":      "https://backend.example",
		"BACKEND_ANON_KEY": "anon",
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(context.Background(), envconfig.MapLookuper(required()))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "UG", cfg.PhoneRegion)
	assert.False(t, cfg.DebugBanner)
	assert.Equal(t, SessionStoreMemory, cfg.Session.Store)
	assert.Equal(t, 200*time.Millisecond, cfg.Session.PollInterval)
	assert.Equal(t, 6*time.Second, cfg.Session.PollBudget)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
	assert.False(t, cfg.Audit.Enabled)
	assert.False(t, cfg.IsProduction())
}

func TestParse_Overrides(t *testing.T) {
	env := required()
	env["SESSION_STORE"] = "redis"
	env["DEBUG_BANNER"] = "true"
	env["ENV"] = "Production"
	env["SIGNIN_POLL_BUDGET"] = "3s"

	cfg, err := Parse(context.Background(), envconfig.MapLookuper(env))
	require.NoError(t, err)
	assert.Equal(t, SessionStoreRedis, cfg.Session.Store)
	assert.True(t, cfg.DebugBanner)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 3*time.Second, cfg.Session.PollBudget)
}

func TestParse_MissingBackend(t *testing.T) {
	_, err := Parse(context.Background(), envconfig.MapLookuper(map[string]string{}))
	assert.Error(t, err)
}

func TestParse_InvalidStore(t *testing.T) {
	env := required()
	env["SESSION_STORE"] = "disk"

	_, err := Parse(context.Background(), envconfig.MapLookuper(env))
	assert.ErrorContains(t, err, "SESSION_STORE")
}
