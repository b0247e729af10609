package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
)

// Credential lookup in the OS keyring
const (
	KeyringService = "e2bbox"
	KeyringAPIKey  = "E2B_API_KEY"
)

// keyringGet is swapped in tests so they never touch the host keyring.
var keyringGet = keyring.Get

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	E2B     E2BConfig     `mapstructure:"e2b"`
	Session SessionConfig `mapstructure:"session"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport      string `mapstructure:"transport"`
	HTTPPort       int    `mapstructure:"http_port"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
}

// E2BConfig holds the remote sandbox service settings
type E2BConfig struct {
	APIKey            string `mapstructure:"api_key"`
	Domain            string `mapstructure:"domain"`
	APIURL            string `mapstructure:"api_url"`
	Template          string `mapstructure:"template"`
	SandboxTimeoutSec int    `mapstructure:"sandbox_timeout_sec"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec"`
}

// SessionConfig controls the per-owner session registry
type SessionConfig struct {
	IdleTimeoutSec   int    `mapstructure:"idle_timeout_sec"`
	EvictionSchedule string `mapstructure:"eviction_schedule"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	// .env never overrides variables that are already set
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	return load(v)
}

// NewFromFile loads the configuration from an explicit YAML file
func NewFromFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("E2BBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("e2b.api_key", "E2BBOX_E2B_API_KEY", "E2B_API_KEY"); err != nil {
		return nil, fmt.Errorf("error binding environment: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.E2B.APIKey == "" {
		if key, err := keyringGet(KeyringService, KeyringAPIKey); err == nil {
			config.E2B.APIKey = strings.TrimSpace(key)
		}
	}

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_enabled", true)

	v.SetDefault("e2b.api_key", "")
	v.SetDefault("e2b.domain", "e2b.app")
	v.SetDefault("e2b.api_url", "")
	v.SetDefault("e2b.template", "code-interpreter-v1")
	v.SetDefault("e2b.sandbox_timeout_sec", 3600)
	v.SetDefault("e2b.request_timeout_sec", 300)

	// Zero keeps sessions until they are closed explicitly
	v.SetDefault("session.idle_timeout_sec", 0)
	v.SetDefault("session.eviction_schedule", "@every 1m")

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Server.Transport == "http" && (c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535) {
		return fmt.Errorf("invalid server.http_port: %d", c.Server.HTTPPort)
	}

	if c.E2B.APIKey == "" {
		return fmt.Errorf("e2b.api_key is required (set E2B_API_KEY or store it in the OS keyring under %q)", KeyringService)
	}

	if c.E2B.Domain == "" {
		return fmt.Errorf("e2b.domain must not be empty")
	}

	if c.E2B.SandboxTimeoutSec <= 0 {
		return fmt.Errorf("e2b.sandbox_timeout_sec must be positive, got: %d", c.E2B.SandboxTimeoutSec)
	}

	if c.E2B.RequestTimeoutSec <= 0 {
		return fmt.Errorf("e2b.request_timeout_sec must be positive, got: %d", c.E2B.RequestTimeoutSec)
	}

	if c.Session.IdleTimeoutSec < 0 {
		return fmt.Errorf("session.idle_timeout_sec must not be negative, got: %d", c.Session.IdleTimeoutSec)
	}

	if c.Session.IdleTimeoutSec > 0 && c.Session.EvictionSchedule == "" {
		return fmt.Errorf("session.eviction_schedule is required when session.idle_timeout_sec is set")
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

// GetRequestTimeout returns the per-request timeout for remote calls
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.E2B.RequestTimeoutSec) * time.Second
}

// GetIdleTimeout returns the session idle timeout, zero when eviction is disabled
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Session.IdleTimeoutSec) * time.Second
}
