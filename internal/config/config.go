package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the chat service.
// Environment variables are parsed from the CHAT_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Durable conversation store. "none" disables the durable backend
	// entirely; the service then runs on the in-process fallback.
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`

	// Completion oracle (OpenAI-compatible chat completions endpoint).
	OracleURL    string `envconfig:"ORACLE_URL" default:"https://ark.cn-beijing.volces.com/api/v3/chat/completions"`
	OracleAPIKey string `envconfig:"ORACLE_API_KEY" default:""`
	OracleModel  string `envconfig:"ORACLE_MODEL" default:"doubao-lite-32k-character-250228"`

	// Web search collaborator (Tavily contract).
	SearchURL        string `envconfig:"SEARCH_URL" default:"https://api.tavily.com/search"`
	SearchAPIKey     string `envconfig:"SEARCH_API_KEY" default:""`
	SearchMaxResults int    `envconfig:"SEARCH_MAX_RESULTS" default:"5"`

	// Single-user deployments omit userId on requests; this fills it in.
	DefaultUserID string `envconfig:"DEFAULT_USER_ID" default:"user-1"`
}

// ResolveDefaults validates the driver choice and derives the sqlite
// path when one is not configured.
func (c *Config) ResolveDefaults() error {
	allowedDB := map[string]bool{"postgres": true, "sqlite": true, "none": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("DB_DRIVER=postgres requires POSTGRES_DSN")
	}
	if c.DBDriver == "sqlite" && c.SQLitePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("derive sqlite path: %w", err)
		}
		c.SQLitePath = filepath.Join(home, ".chatforge", "conversations.db")
	}
	if c.SearchMaxResults <= 0 {
		c.SearchMaxResults = 5
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Environment variables should be prefixed with CHAT_
// Example: CHAT_HTTP_PORT, CHAT_ORACLE_API_KEY
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("CHAT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("db_driver", cfg.DBDriver).
		Str("oracle_model", cfg.OracleModel).
		Bool("oracle_key_present", cfg.OracleAPIKey != "").
		Bool("search_key_present", cfg.SearchAPIKey != "").
		Str("default_user", cfg.DefaultUserID).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing.
func NewForTesting() *Config {
	return &Config{
		Environment:      EnvTesting,
		HTTPPort:         8080,
		DBDriver:         "none",
		OracleModel:      "test-model",
		SearchMaxResults: 5,
		DefaultUserID:    "user-1",
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
