// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/listing-auditor/internal/report"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read into Config,
// e.g. LISTING_AUDIT_DELAY=2s or LISTING_AUDIT_DATABASE_URL=postgres://...
const EnvPrefix = "LISTING_AUDIT"

// Config represents the settings that can come from a config file, the environment or flags.
// All fields are optional; missing values use Defaults.
type Config struct {
	// Paths
	Input string `mapstructure:"input" json:"input,omitempty"` // Reference CSV/JSON file
	Out   string `mapstructure:"out" json:"out,omitempty"`     // Output directory for reports

	// Report
	Formats []string `mapstructure:"formats" json:"formats,omitempty"` // Export formats: csv, xlsx, json

	// Fetching
	Delay      time.Duration `mapstructure:"delay" json:"delay,omitempty" validate:"gte=0"`     // Idle time between page fetches
	Timeout    time.Duration `mapstructure:"timeout" json:"timeout,omitempty" validate:"gte=0"` // Per-request timeout
	UseBrowser bool          `mapstructure:"use_browser" json:"use_browser,omitempty"`          // Render pages in headless Chrome
	UserAgent  string        `mapstructure:"user_agent" json:"user_agent,omitempty"`

	// Cache
	DatabaseURL string        `mapstructure:"database_url" json:"database_url,omitempty"` // PostgreSQL connection URL
	CacheTTL    time.Duration `mapstructure:"cache_ttl" json:"cache_ttl,omitempty" validate:"gte=0"`

	// Logging
	Verbose   bool   `mapstructure:"verbose" json:"verbose,omitempty"`
	LogLevel  string `mapstructure:"log_level" json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" json:"log_format,omitempty" validate:"omitempty,oneof=console structured"`

	// Server
	Port      int     `mapstructure:"port" json:"port,omitempty" validate:"gte=0,lte=65535"`
	RateLimit float64 `mapstructure:"rate_limit" json:"rate_limit,omitempty" validate:"gte=0"` // Requests per second per client; zero disables
	RateBurst int     `mapstructure:"rate_burst" json:"rate_burst,omitempty" validate:"gte=0"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Out:       ".",
		Formats:   []string{string(report.FormatXLSX)},
		Delay:     time.Second,
		Timeout:   10 * time.Second,
		CacheTTL:  24 * time.Hour,
		LogLevel:  "info",
		LogFormat: "console",
		Port:      8080,
		RateLimit: 1,
		RateBurst: 5,
	}
}

// LoadConfig loads configuration from an optional JSON or YAML file and
// LISTING_AUDIT_* environment variables, on top of Defaults. An empty path
// reads the environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	defaults := Defaults()
	for key, value := range map[string]any{
		"input":        defaults.Input,
		"out":          defaults.Out,
		"formats":      defaults.Formats,
		"delay":        defaults.Delay,
		"timeout":      defaults.Timeout,
		"use_browser":  defaults.UseBrowser,
		"user_agent":   defaults.UserAgent,
		"database_url": defaults.DatabaseURL,
		"cache_ttl":    defaults.CacheTTL,
		"verbose":      defaults.Verbose,
		"log_level":    defaults.LogLevel,
		"log_format":   defaults.LogFormat,
		"port":         defaults.Port,
		"rate_limit":   defaults.RateLimit,
		"rate_burst":   defaults.RateBurst,
	} {
		// Every key needs a default for AutomaticEnv to see it during Unmarshal
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, nil
}

var validate = validator.New()

// Validate checks that the configuration has valid values.
// Required inputs are checked by the commands after flags are merged.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			msgs := make([]string, 0, len(validationErrs))
			for _, fe := range validationErrs {
				msgs = append(msgs, fmt.Sprintf("'%s' failed '%s' (value %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("config error: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config error: %w", err)
	}

	if _, err := report.ParseFormats(c.Formats); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.Input != "" {
		if _, err := os.Stat(c.Input); os.IsNotExist(err) {
			return fmt.Errorf("config error: input file not found: %s", c.Input)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with zero-valued fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Input == "" {
		result.Input = defaults.Input
	}
	if result.Out == "" {
		result.Out = defaults.Out
	}
	if len(result.Formats) == 0 {
		result.Formats = defaults.Formats
	}
	if result.Timeout == 0 {
		result.Timeout = defaults.Timeout
	}
	if result.UserAgent == "" {
		result.UserAgent = defaults.UserAgent
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.CacheTTL == 0 {
		result.CacheTTL = defaults.CacheTTL
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.LogFormat == "" {
		result.LogFormat = defaults.LogFormat
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.RateBurst == 0 {
		result.RateBurst = defaults.RateBurst
	}

	// Delay, RateLimit and bools: zero is a meaningful choice, so they are never merged

	return result
}
