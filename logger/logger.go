package logger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/isdmx/e2bbox/config"
)

// Name is the root logger name
const Name = "e2bbox"

// Field keys shared by every component that logs about a session
const (
	ActionKey    = "action"
	OwnerKey     = "owner_id"
	RequestIDKey = "request_id"
	SandboxKey   = "sandbox_id"
)

// NewFromConfig builds the application logger from the logging section
func NewFromConfig(cfg *config.Config) (*zap.Logger, error) {
	return New(cfg.Logging.Mode, cfg.Logging.Level)
}

// New creates a logger writing to stderr. stdout belongs to the MCP stdio
// transport, so no mode may log there.
func New(mode, level string) (*zap.Logger, error) {
	cfg, err := buildConfig(mode, level)
	if err != nil {
		return nil, err
	}

	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return log.Named(Name), nil
}

func buildConfig(mode, level string) (zap.Config, error) {
	var cfg zap.Config

	switch mode {
	case "development":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "production":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return zap.Config{}, fmt.Errorf("invalid logging mode: %s, must be 'production' or 'development'", mode)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return zap.Config{}, fmt.Errorf("invalid logging level: %s, must be one of 'debug', 'info', 'warn', 'error', 'dpanic', 'panic', 'fatal'", level)
	}
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	return cfg, nil
}

// ForAction returns a child logger for one action invocation, tagged with a
// fresh request id
func ForAction(log *zap.Logger, action, ownerID string) *zap.Logger {
	return log.With(
		zap.String(ActionKey, action),
		zap.String(OwnerKey, ownerID),
		zap.String(RequestIDKey, uuid.NewString()))
}

// APIKey logs a credential by its last four characters only
func APIKey(key string) zap.Field {
	const visible = 4
	switch {
	case key == "":
		return zap.String("e2b.api_key", "")
	case len(key) <= visible:
		return zap.String("e2b.api_key", strings.Repeat("*", len(key)))
	default:
		return zap.String("e2b.api_key", strings.Repeat("*", len(key)-visible)+key[len(key)-visible:])
	}
}
