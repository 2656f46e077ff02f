package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/scaletrack")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ModePostgres, cfg.Source.Mode)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Auth.OIDC.Enabled())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ADDR", ":9090")
	t.Setenv("SOURCE_MODE", "rest")
	t.Setenv("SOURCE_BASE_URL", "https://api.example.com")
	t.Setenv("SOURCE_RPS", "2.5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, ModeREST, cfg.Source.Mode)
	assert.Equal(t, "https://api.example.com", cfg.Source.BaseURL)
	assert.Equal(t, 2.5, cfg.Source.RPS)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestUnrelatedEnvIsIgnored(t *testing.T) {
	t.Setenv("SOURCE_MODE", "memory")
	t.Setenv("PATHLIKE_RANDOM_VAR", "junk")

	_, err := Load()
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "postgres mode requires database url",
			mutate:  func(c *Config) { c.Database.URL = "" },
			wantErr: "database url",
		},
		{
			name: "rest mode requires base url",
			mutate: func(c *Config) {
				c.Source.Mode = ModeREST
				c.Source.BaseURL = ""
			},
			wantErr: "base url",
		},
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Source.Mode = "carrier-pigeon" },
			wantErr: "unknown source mode",
		},
		{
			name: "oidc issuer without client credentials",
			mutate: func(c *Config) {
				c.Auth.OIDC.Issuer = "https://sso.example.com"
			},
			wantErr: "oidc requires",
		},
		{
			name:    "non-positive session ttl",
			mutate:  func(c *Config) { c.Auth.SessionTTL = 0 },
			wantErr: "session ttl",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Database.URL = "postgres://localhost/scaletrack"
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
