package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Token store backends
const (
	TokenStoreFile    = "file"
	TokenStoreKeyring = "keyring"
	TokenStoreMemory  = "memory"
)

// Config holds all client configuration
type Config struct {
	API        APIConfig
	TokenStore TokenStoreConfig
	Chat       ChatConfig
	Logging    LoggingConfig
	DevServer  DevServerConfig
	AppEnv     string
}

type APIConfig struct {
	BaseURL string
	// AutoRefresh enables the 401-intercept path: one silent token
	// refresh and a single replay before the failure is surfaced
	AutoRefresh bool
}

type TokenStoreConfig struct {
	Backend  string
	StateDir string
	// Service is the keyring service name when the keyring backend is used
	Service string
}

type ChatConfig struct {
	PollIntervalSeconds int
}

type LoggingConfig struct {
	Level string
	Dir   string
}

type DevServerConfig struct {
	Port               string
	JWTSecret          string
	JWTIssuer          string
	AccessTTLMinutes   int
	RefreshTTLHours    int
	AllowedOrigins     []string
	RateLimitPerSecond int
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("KINDRA_API_BASE_URL", "https://api.kindra.app/api/v1")
	v.SetDefault("KINDRA_AUTO_REFRESH", false)
	v.SetDefault("KINDRA_TOKEN_STORE", TokenStoreFile)
	v.SetDefault("KINDRA_KEYRING_SERVICE", "kindra-client")
	v.SetDefault("KINDRA_CHAT_POLL_INTERVAL", 5)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "production")

	// Dev server defaults
	v.SetDefault("DEVSERVER_PORT", "8089")
	v.SetDefault("DEVSERVER_JWT_SECRET", "dev-only-secret")
	v.SetDefault("DEVSERVER_JWT_ISSUER", "kindra-devserver")
	v.SetDefault("DEVSERVER_ACCESS_TTL_MINUTES", 30)
	v.SetDefault("DEVSERVER_REFRESH_TTL_HOURS", 720)
	v.SetDefault("DEVSERVER_ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	v.SetDefault("DEVSERVER_RATE_LIMIT_RPS", 10)
	v.SetDefault("DEVSERVER_RATE_LIMIT_BURST", 20)

	v.AutomaticEnv()

	// Read from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() //nolint:errcheck // .env is optional

	stateDir := v.GetString("KINDRA_STATE_DIR")
	if stateDir == "" {
		stateDir = defaultStateDir()
	}
	logDir := v.GetString("LOG_DIR")
	if logDir == "" {
		logDir = filepath.Join(stateDir, "logs")
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL:     v.GetString("KINDRA_API_BASE_URL"),
			AutoRefresh: v.GetBool("KINDRA_AUTO_REFRESH"),
		},
		TokenStore: TokenStoreConfig{
			Backend:  v.GetString("KINDRA_TOKEN_STORE"),
			StateDir: stateDir,
			Service:  v.GetString("KINDRA_KEYRING_SERVICE"),
		},
		Chat: ChatConfig{
			PollIntervalSeconds: v.GetInt("KINDRA_CHAT_POLL_INTERVAL"),
		},
		Logging: LoggingConfig{
			Level: v.GetString("LOG_LEVEL"),
			Dir:   logDir,
		},
		DevServer: DevServerConfig{
			Port:               v.GetString("DEVSERVER_PORT"),
			JWTSecret:          v.GetString("DEVSERVER_JWT_SECRET"),
			JWTIssuer:          v.GetString("DEVSERVER_JWT_ISSUER"),
			AccessTTLMinutes:   v.GetInt("DEVSERVER_ACCESS_TTL_MINUTES"),
			RefreshTTLHours:    v.GetInt("DEVSERVER_REFRESH_TTL_HOURS"),
			AllowedOrigins:     v.GetStringSlice("DEVSERVER_ALLOWED_ORIGINS"),
			RateLimitPerSecond: v.GetInt("DEVSERVER_RATE_LIMIT_RPS"),
			RateLimitBurst:     v.GetInt("DEVSERVER_RATE_LIMIT_BURST"),
		},
		AppEnv: v.GetString("APP_ENV"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("KINDRA_API_BASE_URL is required")
	}

	switch c.TokenStore.Backend {
	case TokenStoreFile, TokenStoreKeyring, TokenStoreMemory:
	default:
		return fmt.Errorf("KINDRA_TOKEN_STORE must be one of file, keyring, memory (got %q)", c.TokenStore.Backend)
	}

	if c.TokenStore.Backend == TokenStoreFile && c.TokenStore.StateDir == "" {
		return fmt.Errorf("KINDRA_STATE_DIR is required with the file token store")
	}

	if c.Chat.PollIntervalSeconds <= 0 {
		return fmt.Errorf("KINDRA_CHAT_POLL_INTERVAL must be positive")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "kindra")
	}
	return ".kindra"
}
