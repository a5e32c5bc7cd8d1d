// Package config loads application settings from an optional YAML file with
// environment variable overrides. API keys come from the environment only and
// are read exactly once, at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30m" parse.
type Duration time.Duration

// UnmarshalYAML parses a duration string ("90s", "2h") or a bare integer
// interpreted as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs int64
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	return fmt.Errorf("invalid duration value %q", value.Value)
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Session   SessionConfig   `yaml:"session"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ProviderConfig configures one model provider. The API key is never read
// from YAML; only the environment supplies it.
type ProviderConfig struct {
	APIKey  string `yaml:"-"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// ProvidersConfig groups both providers plus the cross-cutting wrappers.
type ProvidersConfig struct {
	OpenAI        ProviderConfig `yaml:"openai"`
	Gemini        ProviderConfig `yaml:"gemini"`
	EnableBreaker bool           `yaml:"enable_breaker"`
}

// DatabaseConfig configures the optional durable store.
type DatabaseConfig struct {
	Enabled   bool   `yaml:"enabled"`
	DSN       string `yaml:"dsn"`
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
}

// LoggingConfig configures logrus output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // "json" or "text"
	File       string `yaml:"file"`   // empty means stdout only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// TelemetryConfig toggles tracing and metrics.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SessionConfig bounds the in-memory session store.
type SessionConfig struct {
	Capacity int      `yaml:"capacity"`
	TTL      Duration `yaml:"ttl"`
}

// Default returns the configuration used when no file and no overrides exist.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(120 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Providers: ProvidersConfig{
			EnableBreaker: true,
		},
		Database: DatabaseConfig{
			Enabled:   true,
			DSN:       "chat.db",
			Workers:   2,
			QueueSize: 1000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
		},
		Session: SessionConfig{
			Capacity: 1024,
			TTL:      Duration(2 * time.Hour),
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if it
// exists), then environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
			logrus.WithField("path", path).Info("Loaded config file")
		case os.IsNotExist(err):
			logrus.WithField("path", path).Debug("Config file not found, using defaults")
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.validate()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		} else {
			logrus.WithField("PORT", v).Warn("Ignoring non-numeric PORT")
		}
	}

	c.Providers.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	c.Providers.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.Providers.OpenAI.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.Providers.OpenAI.Model = v
	}
	if v := os.Getenv("GEMINI_BASE_URL"); v != "" {
		c.Providers.Gemini.BaseURL = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.Providers.Gemini.Model = v
	}

	if v := os.Getenv("DATABASE_ENABLED"); v != "" {
		c.Database.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	if v := os.Getenv("TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
}

// validate warns about degraded modes instead of failing: the server is
// useful with a single provider key, and even with none it can serve the UI
// and report credential errors inline.
func (c *Config) validate() {
	if c.Providers.OpenAI.APIKey == "" && c.Providers.Gemini.APIKey == "" {
		logrus.Warn("No provider API keys configured; all submissions will fail with credential errors")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		logrus.WithField("port", c.Server.Port).Warn("Port out of range, falling back to 8080")
		c.Server.Port = 8080
	}
	if c.Session.Capacity <= 0 {
		c.Session.Capacity = 1024
	}
	if c.Session.TTL <= 0 {
		c.Session.TTL = Duration(2 * time.Hour)
	}
}
