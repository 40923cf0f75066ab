package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/vogtb/go-spreadsheet/packages/formula/internal/errors"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/logging"
)

// Config is the complete configuration for the CLI and server.
type Config struct {
	Web    WebConfig    `toml:"web"`
	Server ServerConfig `toml:"server"`
	Eval   EvalConfig   `toml:"eval"`
	Log    LogConfig    `toml:"log"`
}

// WebConfig controls the WEBSERVICE fetcher.
type WebConfig struct {
	Enabled          bool     `toml:"enabled"`
	Timeout          Duration `toml:"timeout"`
	MaxURLLength     int      `toml:"max_url_length"`
	MaxResponseBytes int      `toml:"max_response_bytes"`
	MaxConcurrent    int      `toml:"max_concurrent"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type EvalConfig struct {
	DefaultSheet string `toml:"default_sheet"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Duration reads "5s" style strings from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Web: WebConfig{
			Enabled:          false,
			Timeout:          Duration{10 * time.Second},
			MaxURLLength:     2000,
			MaxResponseBytes: 1 << 20,
			MaxConcurrent:    4,
		},
		Server: ServerConfig{Addr: ":8080"},
		Eval:   EvalConfig{DefaultSheet: "Sheet1"},
		Log:    LogConfig{Level: "INFO"},
	}
}

// Load reads .env, then the TOML file at path (skipped when path is empty
// and FORMULA_CONFIG is unset), then FORMULA_* environment variables.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("FORMULA_CONFIG")
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, errors.Wrapf(errors.WithCode(errors.CodeConfigInvalid, err), "read config %s", path)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

// Decode parses TOML text on top of the defaults without consulting the
// environment.
func Decode(data string) (*Config, error) {
	cfg := Default()
	if _, err := toml.Decode(data, cfg); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Web.Enabled = getEnvBoolOrDefault("FORMULA_WEB_ENABLED", cfg.Web.Enabled)
	cfg.Web.Timeout.Duration = getEnvDurationOrDefault("FORMULA_WEB_TIMEOUT", cfg.Web.Timeout.Duration)
	cfg.Web.MaxURLLength = getEnvIntOrDefault("FORMULA_WEB_MAX_URL_LENGTH", cfg.Web.MaxURLLength)
	cfg.Web.MaxResponseBytes = getEnvIntOrDefault("FORMULA_WEB_MAX_RESPONSE_BYTES", cfg.Web.MaxResponseBytes)
	cfg.Web.MaxConcurrent = getEnvIntOrDefault("FORMULA_WEB_MAX_CONCURRENT", cfg.Web.MaxConcurrent)
	cfg.Server.Addr = getEnvOrDefault("FORMULA_SERVER_ADDR", cfg.Server.Addr)
	cfg.Eval.DefaultSheet = getEnvOrDefault("FORMULA_DEFAULT_SHEET", cfg.Eval.DefaultSheet)
	cfg.Log.Level = getEnvOrDefault("LOG_LEVEL", cfg.Log.Level)
}

// Validate checks ranges and required fields.
func (c *Config) Validate() error {
	if c.Web.Timeout.Duration <= 0 {
		return errors.ConfigInvalid("web.timeout must be positive, got %s", c.Web.Timeout)
	}
	if c.Web.MaxURLLength <= 0 {
		return errors.ConfigInvalid("web.max_url_length must be positive, got %d", c.Web.MaxURLLength)
	}
	if c.Web.MaxResponseBytes <= 0 {
		return errors.ConfigInvalid("web.max_response_bytes must be positive, got %d", c.Web.MaxResponseBytes)
	}
	if c.Web.MaxConcurrent < 1 {
		return errors.ConfigInvalid("web.max_concurrent must be at least 1, got %d", c.Web.MaxConcurrent)
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.ConfigInvalid("server.addr is required")
	}
	if strings.TrimSpace(c.Eval.DefaultSheet) == "" {
		return errors.ConfigInvalid("eval.default_sheet is required")
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return errors.ConfigInvalid("log.level %q is not one of ERROR, WARN, INFO, DEBUG, TRACE", c.Log.Level)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
