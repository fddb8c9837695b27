// Package config loads the service configuration from defaults, an optional
// YAML file, and CHATMODE_* environment variable overrides, in that order.
package config

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/groxaxo/chatmode/orchestrator"
)

// Config is the complete service configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server" env:"SERVER"`
	Log          LogConfig          `yaml:"log" env:"LOG"`
	Database     DatabaseConfig     `yaml:"database" env:"DATABASE"`
	Redis        RedisConfig        `yaml:"redis" env:"REDIS"`
	LLM          LLMConfig          `yaml:"llm" env:"LLM"`
	Embedding    EmbeddingConfig    `yaml:"embedding" env:"EMBEDDING"`
	Speech       SpeechConfig       `yaml:"speech" env:"SPEECH"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" env:"ORCHESTRATOR"`
	Auth         AuthConfig         `yaml:"auth" env:"AUTH"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LogConfig holds the zap logger settings.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`   // debug, info, warn, error
	Format           string   `yaml:"format" env:"FORMAT"` // json, console
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// BuildLogger constructs the zap logger described by the configuration.
func (l LogConfig) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}

	cfg := zap.NewProductionConfig()
	if l.Format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	if len(l.OutputPaths) > 0 {
		cfg.OutputPaths = l.OutputPaths
	}
	cfg.DisableCaller = !l.EnableCaller
	cfg.DisableStacktrace = !l.EnableStacktrace

	return cfg.Build()
}

// DatabaseConfig selects and parameterizes the relational backend.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"DRIVER"` // sqlite, postgres, mysql
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// DSN returns the driver-specific connection string.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite", "":
		return d.Name
	default:
		return ""
	}
}

// RedisConfig holds the optional audio cache backend. An empty Addr keeps
// the in-process cache.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

// ProviderConfig describes one OpenAI-compatible chat endpoint. Providers
// beyond the default are configured in YAML only.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// LLMConfig holds the chat provider settings.
type LLMConfig struct {
	DefaultProvider string        `yaml:"default_provider" env:"DEFAULT_PROVIDER"`
	APIKey          string        `yaml:"api_key" env:"API_KEY"`
	BaseURL         string        `yaml:"base_url" env:"BASE_URL"`
	Timeout         time.Duration `yaml:"timeout" env:"TIMEOUT"`

	// Additional named endpoints referenced by agent profiles.
	Providers []ProviderConfig `yaml:"providers" env:"-"`
}

// EmbeddingConfig holds the embedding provider settings used by the memory
// index.
type EmbeddingConfig struct {
	Model   string `yaml:"model" env:"MODEL"`
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	APIKey  string `yaml:"api_key" env:"API_KEY"`
}

// SpeechConfig holds the TTS settings.
type SpeechConfig struct {
	Enabled     bool          `yaml:"enabled" env:"ENABLED"`
	BaseURL     string        `yaml:"base_url" env:"BASE_URL"`
	APIKey      string        `yaml:"api_key" env:"API_KEY"`
	ArtifactTTL time.Duration `yaml:"artifact_ttl" env:"ARTIFACT_TTL"`
	URLPrefix   string        `yaml:"url_prefix" env:"URL_PREFIX"`
}

// OrchestratorConfig mirrors the orchestrator tunables for file and env
// loading.
type OrchestratorConfig struct {
	TurnDelay         time.Duration `yaml:"turn_delay" env:"TURN_DELAY"`
	IdleInterval      time.Duration `yaml:"idle_interval" env:"IDLE_INTERVAL"`
	HistoryWindow     int           `yaml:"history_window" env:"HISTORY_WINDOW"`
	HistoryCeiling    int           `yaml:"history_ceiling" env:"HISTORY_CEILING"`
	DefaultTopK       int           `yaml:"default_top_k" env:"DEFAULT_TOP_K"`
	StatusWindow      int           `yaml:"status_window" env:"STATUS_WINDOW"`
	MaxPersonaBytes   int           `yaml:"max_persona_bytes" env:"MAX_PERSONA_BYTES"`
	ModeratorProvider string        `yaml:"moderator_provider" env:"MODERATOR_PROVIDER"`
	ModeratorModel    string        `yaml:"moderator_model" env:"MODERATOR_MODEL"`
}

// ToOrchestrator converts to the orchestrator's own config type.
func (o OrchestratorConfig) ToOrchestrator() orchestrator.Config {
	return orchestrator.Config{
		TurnDelay:         o.TurnDelay,
		IdleInterval:      o.IdleInterval,
		HistoryWindow:     o.HistoryWindow,
		HistoryCeiling:    o.HistoryCeiling,
		DefaultTopK:       o.DefaultTopK,
		StatusWindow:      o.StatusWindow,
		MaxPersonaBytes:   o.MaxPersonaBytes,
		ModeratorProvider: o.ModeratorProvider,
		ModeratorModel:    o.ModeratorModel,
	}
}

// AuthConfig holds the admin authentication settings. BootstrapUser and
// BootstrapPassword create the first admin account when the user table is
// empty.
type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL          time.Duration `yaml:"token_ttl" env:"TOKEN_TTL"`
	BootstrapUser     string        `yaml:"bootstrap_user" env:"BOOTSTRAP_USER"`
	BootstrapPassword string        `yaml:"bootstrap_password" env:"BOOTSTRAP_PASSWORD"`
}

// Validate checks the loaded configuration for structural problems.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	switch c.Database.Driver {
	case "", "sqlite", "postgres", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, "auth.jwt_secret is required")
	}
	if c.Orchestrator.TurnDelay < 0 || c.Orchestrator.IdleInterval < 0 {
		errs = append(errs, "orchestrator intervals must be non-negative")
	}
	seen := map[string]bool{}
	for _, p := range c.LLM.Providers {
		if p.Name == "" {
			errs = append(errs, "llm provider entries need a name")
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Sprintf("duplicate llm provider %q", p.Name))
		}
		seen[p.Name] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
