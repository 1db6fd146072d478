// Package config loads tsaclient settings from a TOML or YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/digitorus/tsaclient"
)

// Config holds the complete client and server configuration.
type Config struct {
	TSA     TSAConfig     `toml:"tsa" yaml:"tsa"`
	Server  ServerConfig  `toml:"server" yaml:"server"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
}

// TSAConfig describes the time-stamp authority.
type TSAConfig struct {
	// URL of the TSA endpoint. Empty disables timestamping.
	URL string `toml:"url" yaml:"url"`

	// Username for HTTP Basic, or the numeric customer id in vendor mode.
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`

	// VendorMode switches to identity-token authentication.
	VendorMode bool `toml:"vendor_mode" yaml:"vendor_mode"`

	// TimeoutSec bounds each HTTP exchange with the TSA. Zero means no
	// client-side timeout.
	TimeoutSec int `toml:"timeout_sec" yaml:"timeout_sec"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Listen string `toml:"listen" yaml:"listen"`

	// RateLimit is the sustained number of API requests per second; zero
	// disables limiting.
	RateLimit float64 `toml:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `toml:"rate_burst" yaml:"rate_burst"`

	MaxUploadBytes int64 `toml:"max_upload_bytes" yaml:"max_upload_bytes"`
}

// LoggingConfig configures logrus.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`   // logrus level name
	Format string `toml:"format" yaml:"format"` // "text" or "json"
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:         ":8080",
			RateLimit:      10,
			RateBurst:      20,
			MaxUploadBytes: 32 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path (if it exists), applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

func loadConfigFromFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch filepath.Ext(path) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if err := autoDetectAndParse(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	return cfg, nil
}

// autoDetectAndParse tries TOML, then YAML.
func autoDetectAndParse(data []byte, cfg *Config) error {
	tomlCfg := *cfg
	if _, err := toml.Decode(string(data), &tomlCfg); err == nil {
		*cfg = tomlCfg
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("neither TOML nor YAML: %w", err)
	}
	return nil
}

// Environment variables recognised by ApplyEnvOverrides. The TS_ and IS_
// names are shared with existing deployments of the timestamp service.
const (
	EnvTSAURL      = "TS_SERVER_HOST"
	EnvTSAUser     = "TS_USER_ID"
	EnvTSAPassword = "TS_USER_PASSWORD"
	EnvVendorMode  = "IS_TUBITAK_TSP"
	EnvTSATimeout  = "TSACLIENT_TSA_TIMEOUT_SEC"
	EnvListen      = "TSACLIENT_LISTEN"
	EnvRateLimit   = "TSACLIENT_RATE_LIMIT"
	EnvLogLevel    = "TSACLIENT_LOG_LEVEL"
	EnvLogFormat   = "TSACLIENT_LOG_FORMAT"
)

// ApplyEnvOverrides replaces file values with those set in the environment.
func (c *Config) ApplyEnvOverrides() {
	c.TSA.URL = getEnv(EnvTSAURL, c.TSA.URL)
	c.TSA.Username = getEnv(EnvTSAUser, c.TSA.Username)
	c.TSA.Password = getEnv(EnvTSAPassword, c.TSA.Password)
	c.TSA.VendorMode = getEnvBool(EnvVendorMode, c.TSA.VendorMode)
	c.TSA.TimeoutSec = getEnvInt(EnvTSATimeout, c.TSA.TimeoutSec)

	c.Server.Listen = getEnv(EnvListen, c.Server.Listen)
	c.Server.RateLimit = getEnvFloat(EnvRateLimit, c.Server.RateLimit)

	c.Logging.Level = getEnv(EnvLogLevel, c.Logging.Level)
	c.Logging.Format = getEnv(EnvLogFormat, c.Logging.Format)
}

// Source converts the TSA section for the client library.
func (t TSAConfig) Source() tsaclient.SourceConfig {
	return tsaclient.SourceConfig{
		URL:        t.URL,
		Username:   t.Username,
		Password:   t.Password,
		VendorMode: t.VendorMode,
	}
}

// Timeout returns TimeoutSec as a duration.
func (t TSAConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
