package config_test

import (
	"testing"

	"github.com/kindra-app/kindra-client/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.kindra.app/api/v1", cfg.API.BaseURL)
	assert.False(t, cfg.API.AutoRefresh)
	assert.Equal(t, config.TokenStoreFile, cfg.TokenStore.Backend)
	assert.NotEmpty(t, cfg.TokenStore.StateDir)
	assert.Equal(t, 5, cfg.Chat.PollIntervalSeconds)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KINDRA_API_BASE_URL", "http://localhost:8089/api/v1")
	t.Setenv("KINDRA_TOKEN_STORE", "memory")
	t.Setenv("KINDRA_AUTO_REFRESH", "true")
	t.Setenv("APP_ENV", "development")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8089/api/v1", cfg.API.BaseURL)
	assert.Equal(t, config.TokenStoreMemory, cfg.TokenStore.Backend)
	assert.True(t, cfg.API.AutoRefresh)
	assert.True(t, cfg.IsDevelopment())
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{
			name:   "missing base URL",
			mutate: func(c *config.Config) { c.API.BaseURL = "" },
		},
		{
			name:   "unknown token store backend",
			mutate: func(c *config.Config) { c.TokenStore.Backend = "redis" },
		},
		{
			name: "file store without state dir",
			mutate: func(c *config.Config) {
				c.TokenStore.Backend = config.TokenStoreFile
				c.TokenStore.StateDir = ""
			},
		},
		{
			name:   "non-positive poll interval",
			mutate: func(c *config.Config) { c.Chat.PollIntervalSeconds = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
