// Package config loads turnkitd's runtime configuration from the
// environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ModelMode selects where the primary/co-agent model comes from.
type ModelMode string

const (
	ModelModeMock     ModelMode = "mock"
	ModelModeProvider ModelMode = "provider"
)

// LogFormat selects the slog handler used at startup.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Config controls turnkitd's startup: which model backs each agent,
// where telemetry is persisted, and the turn engine's safety limits.
type Config struct {
	ModelMode       ModelMode     `env:"TURNKIT_MODEL_MODE" envDefault:"provider"`
	ProviderAPIKey  string        `env:"TURNKIT_PROVIDER_API_KEY"`
	ProviderModel   string        `env:"TURNKIT_PROVIDER_MODEL" envDefault:"gpt-4.1-mini"`
	ProviderBaseURL string        `env:"TURNKIT_PROVIDER_BASE_URL" envDefault:"https://api.openai.com/v1"`
	ProviderTimeout time.Duration `env:"TURNKIT_PROVIDER_TIMEOUT" envDefault:"30s"`

	CoagentModel ModelMode `env:"TURNKIT_COAGENT_MODE" envDefault:"mock"`

	DataDir        string `env:"TURNKIT_DATA_DIR" envDefault:"./turnkit-data"`
	WorkspaceRoot  string `env:"TURNKIT_WORKSPACE_ROOT"`
	MaxIterations  int    `env:"TURNKIT_MAX_ITERATIONS" envDefault:"20"`
	DoomLoopWindow int    `env:"TURNKIT_DOOM_LOOP_WINDOW" envDefault:"3"`
	ObserveCoagent bool   `env:"TURNKIT_OBSERVE_COAGENT" envDefault:"false"`

	LogFormat LogFormat `env:"TURNKIT_LOG_FORMAT" envDefault:"text"`
	LogLevel  string    `env:"TURNKIT_LOG_LEVEL" envDefault:"info"`
}

// Load binds Config from the environment and fills in anything the
// environment left unset that still needs a concrete value (the
// working directory).
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if strings.TrimSpace(cfg.WorkspaceRoot) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("load config: resolve workspace root: %w", err)
		}
		cfg.WorkspaceRoot = wd
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants env.Parse's struct tags can't
// express on their own.
func (c Config) Validate() error {
	switch c.ModelMode {
	case ModelModeMock:
	case ModelModeProvider:
		if strings.TrimSpace(c.ProviderAPIKey) == "" {
			return fmt.Errorf("validate config: provider mode requires TURNKIT_PROVIDER_API_KEY")
		}
	default:
		return fmt.Errorf("validate config: unsupported TURNKIT_MODEL_MODE %q (allowed: %q, %q)", c.ModelMode, ModelModeMock, ModelModeProvider)
	}

	switch c.CoagentModel {
	case ModelModeMock, ModelModeProvider:
	default:
		return fmt.Errorf("validate config: unsupported TURNKIT_COAGENT_MODE %q (allowed: %q, %q)", c.CoagentModel, ModelModeMock, ModelModeProvider)
	}

	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("validate config: TURNKIT_PROVIDER_TIMEOUT must be > 0")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("validate config: TURNKIT_MAX_ITERATIONS must be > 0")
	}
	if c.DoomLoopWindow <= 0 {
		return fmt.Errorf("validate config: TURNKIT_DOOM_LOOP_WINDOW must be > 0")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("validate config: TURNKIT_DATA_DIR must not be empty")
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("validate config: unsupported TURNKIT_LOG_FORMAT %q (allowed: %q, %q)", c.LogFormat, LogFormatText, LogFormatJSON)
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel into a slog.Level.
func (c Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("validate config: unsupported TURNKIT_LOG_LEVEL %q", c.LogLevel)
	}
}
