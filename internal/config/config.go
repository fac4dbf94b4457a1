// Package config provides centralized configuration management for the application.
//
// Settings are layered, later sources winning:
//
//  1. defaults from struct tags
//  2. an optional TOML or YAML file
//  3. environment variables (a .env file is loaded by the caller)
//
// Command-line flags are applied on top by cmd/moviecleaner. The result is
// validated once so misconfiguration fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Input   InputConfig     `toml:"input" yaml:"input"`
	Clean   CleanConfig     `toml:"clean" yaml:"clean"`
	Output  OutputConfig    `toml:"output" yaml:"output"`
	Server  ServerConfig    `toml:"server" yaml:"server"`
	Rate    RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
	Logging LoggingConfig   `toml:"logging" yaml:"logging"`
}

// InputConfig controls how the movie CSV is read.
type InputConfig struct {
	// Path is the CSV file to clean (default: movies_metadata.csv)
	Path string `env:"MOVIES_INPUT" envAlt:"MOVIES_INPUT_PATH" default:"movies_metadata.csv" toml:"path" yaml:"path"`

	// Encoding is the text encoding label (default: utf-8)
	Encoding string `env:"MOVIES_ENCODING" default:"utf-8" toml:"encoding" yaml:"encoding"`

	// LowMemory streams records with strict quoting instead of buffering (default: false)
	LowMemory bool `env:"MOVIES_LOW_MEMORY" default:"false" toml:"low_memory" yaml:"low_memory"`

	// Delimiter is the single-character field separator (default: ,)
	Delimiter string `env:"MOVIES_DELIMITER" default:"," toml:"delimiter" yaml:"delimiter"`

	// NullValues replaces the built-in list of null tokens when set
	NullValues []string `env:"MOVIES_NULL_VALUES" toml:"null_values,omitempty" yaml:"null_values,omitempty"`
}

// CleanConfig controls the cleaning pipeline.
type CleanConfig struct {
	// DropColumns replaces the built-in drop list when set
	DropColumns []string `env:"MOVIES_DROP_COLUMNS" toml:"drop_columns,omitempty" yaml:"drop_columns,omitempty"`

	// GenresPolicy is strict or null (default: strict)
	GenresPolicy string `env:"MOVIES_GENRES_POLICY" default:"strict" toml:"genres_policy" yaml:"genres_policy"`
}

// OutputConfig controls the JSON export.
type OutputConfig struct {
	// Path is the JSON file to write (default: movies_clean.json)
	Path string `env:"MOVIES_OUTPUT" envAlt:"MOVIES_OUTPUT_PATH" default:"movies_clean.json" toml:"path" yaml:"path"`

	// Orient is the JSON layout: records, split, index, columns, values (default: records)
	Orient string `env:"MOVIES_ORIENT" default:"records" toml:"orient" yaml:"orient"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0" toml:"host" yaml:"host"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080" toml:"port" yaml:"port"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s" toml:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s" toml:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s" toml:"idle_timeout" yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s" toml:"shutdown_timeout" yaml:"shutdown_timeout"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s" toml:"request_timeout" yaml:"request_timeout"`

	// MaxUploadSize is the maximum accepted CSV size in bytes (default: 100MB)
	MaxUploadSize int64 `env:"SERVER_MAX_UPLOAD_SIZE" default:"104857600" toml:"max_upload_size" yaml:"max_upload_size"`

	// MaxConcurrent is how many cleans may run at once (default: 4)
	MaxConcurrent int `env:"SERVER_MAX_CONCURRENT" default:"4" toml:"max_concurrent" yaml:"max_concurrent"`

	// CleanWait is how long a request waits for a free clean slot before a 503.
	// Capped at half of RequestTimeout (default: 10s)
	CleanWait time.Duration `env:"SERVER_CLEAN_WAIT" default:"10s" toml:"clean_wait" yaml:"clean_wait"`

	// CORSOrigins lists the browser origins allowed to call the API
	CORSOrigins []string `env:"SERVER_CORS_ORIGINS" toml:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`

	// TrustedProxies lists proxy CIDRs whose X-Real-IP / X-Forwarded-For are honored
	TrustedProxies []string `env:"TRUSTED_PROXIES" toml:"trusted_proxies,omitempty" yaml:"trusted_proxies,omitempty"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true" toml:"enabled" yaml:"enabled"`

	// RequestsPerMinute is the sustained rate per IP (default: 60)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"60" toml:"requests_per_minute" yaml:"requests_per_minute"`

	// Burst is how many requests an IP may make at once (default: 10)
	Burst int `env:"RATE_LIMIT_BURST" default:"10" toml:"burst" yaml:"burst"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info" toml:"level" yaml:"level"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text" toml:"format" yaml:"format"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// SlotWait returns how long a request may wait for a clean slot: CleanWait,
// but never more than half of RequestTimeout so a busy server answers before
// the request times out.
func (c *ServerConfig) SlotWait() time.Duration {
	wait := c.CleanWait
	if limit := c.RequestTimeout / 2; limit > 0 && (wait <= 0 || wait > limit) {
		wait = limit
	}
	return wait
}

// DelimiterRune returns the input delimiter as a rune, or 0 when unset.
// "tab" and `\t` select a tab.
func (c *InputConfig) DelimiterRune() rune {
	if c.Delimiter == "tab" || c.Delimiter == `\t` {
		return '\t'
	}
	for _, r := range c.Delimiter {
		return r
	}
	return 0
}
