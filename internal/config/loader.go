package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/moviedata/internal/core"
	"github.com/JonMunkholm/moviedata/internal/logging"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load builds the configuration from defaults, the optional file at path
// and the environment, then validates it. An empty path skips the file.
// Files ending in .toml are read as TOML; .yaml and .yml as YAML.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	v := reflect.ValueOf(cfg).Elem()

	if err := walk(v, applyDefault); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	if path != "" {
		if err := loadFile(v, path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if err := walk(v, applyEnv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// walk calls fn for every settable leaf field, recursing into nested structs.
func walk(v reflect.Value, fn func(field reflect.StructField, value reflect.Value) error) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := walk(fieldVal, fn); err != nil {
				return err
			}
			continue
		}

		if err := fn(field, fieldVal); err != nil {
			return err
		}
	}

	return nil
}

func applyDefault(field reflect.StructField, value reflect.Value) error {
	def := field.Tag.Get("default")
	if def == "" {
		return nil
	}
	if err := setField(value, def); err != nil {
		return fmt.Errorf("invalid default for %s=%q: %w", field.Name, def, err)
	}
	return nil
}

func applyEnv(field reflect.StructField, value reflect.Value) error {
	envName := field.Tag.Get("env")
	if envName == "" {
		return nil
	}

	// Try primary env var, then alternate
	raw := os.Getenv(envName)
	if raw == "" {
		if alt := field.Tag.Get("envAlt"); alt != "" {
			raw = os.Getenv(alt)
		}
	}
	if raw == "" {
		return nil
	}

	if err := setField(value, raw); err != nil {
		return fmt.Errorf("invalid value for %s=%q: %w", envName, raw, err)
	}
	return nil
}

// loadFile overlays the keys present in a TOML or YAML file.
// Unknown keys are rejected so typos do not pass silently.
func loadFile(v reflect.Value, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var raw map[string]any
	var tag string
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		tag = "toml"
		err = toml.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		tag = "yaml"
		err = yaml.Unmarshal(data, &raw)
	default:
		return fmt.Errorf("unsupported format %q (want .toml, .yaml or .yml)", ext)
	}
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	return applyMap(v, raw, tag, "")
}

func applyMap(v reflect.Value, raw map[string]any, tag, prefix string) error {
	t := v.Type()
	known := make(map[string]bool, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)
		key, _, _ := strings.Cut(field.Tag.Get(tag), ",")
		if !fieldVal.CanSet() || key == "" || key == "-" {
			continue
		}
		known[key] = true

		val, ok := raw[key]
		if !ok {
			continue
		}
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}

		if field.Type.Kind() == reflect.Struct {
			sub, ok := val.(map[string]any)
			if !ok {
				return fmt.Errorf("%s: expected a table, got %T", name, val)
			}
			if err := applyMap(fieldVal, sub, tag, name); err != nil {
				return err
			}
			continue
		}

		if err := setValue(fieldVal, val); err != nil {
			return fmt.Errorf("invalid value for %s: %w", name, err)
		}
	}

	var unknown []string
	for k := range raw {
		if !known[k] {
			if prefix != "" {
				k = prefix + "." + k
			}
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown keys: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	if field.Kind() == reflect.Slice {
		return setValue(field, splitList(value))
	}
	return setValue(field, value)
}

// setValue converts a decoded value (string, number, bool or list) to the
// field's type.
func setValue(field reflect.Value, value any) error {
	if field.Type() == durationType {
		d, err := cast.ToDurationE(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		s, err := cast.ToStringE(value)
		if err != nil {
			return err
		}
		field.SetString(s)

	case reflect.Int, reflect.Int32, reflect.Int64:
		i, err := cast.ToInt64E(value)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := cast.ToBoolE(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		if s, ok := value.(string); ok {
			value = splitList(s)
		}
		list, err := cast.ToStringSliceE(value)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(list))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// splitList splits comma-separated values and trims whitespace.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Input validation
	if _, err := core.LookupEncoding(c.Input.Encoding); err != nil {
		errs = append(errs, fmt.Sprintf("MOVIES_ENCODING (%q) is not a supported encoding", c.Input.Encoding))
	}
	if d := c.Input.DelimiterRune(); d != 0 {
		if d == '"' || d == '\r' || d == '\n' || d == utf8.RuneError {
			errs = append(errs, fmt.Sprintf("MOVIES_DELIMITER (%q) is not a valid delimiter", c.Input.Delimiter))
		}
		if c.Input.Delimiter != "tab" && c.Input.Delimiter != `\t` && utf8.RuneCountInString(c.Input.Delimiter) != 1 {
			errs = append(errs, fmt.Sprintf("MOVIES_DELIMITER (%q) must be a single character", c.Input.Delimiter))
		}
	}

	// Cleaning and output validation
	if _, err := core.ParseGenresPolicy(c.Clean.GenresPolicy); err != nil {
		errs = append(errs, fmt.Sprintf("MOVIES_GENRES_POLICY (%q) must be one of: strict, null", c.Clean.GenresPolicy))
	}
	if _, err := core.ParseOrient(c.Output.Orient); err != nil {
		errs = append(errs, fmt.Sprintf("MOVIES_ORIENT (%q) must be one of: records, split, index, columns, values", c.Output.Orient))
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.WriteTimeout < 0 {
		errs = append(errs, "SERVER_WRITE_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, "SERVER_REQUEST_TIMEOUT must be positive")
	}
	if c.Server.MaxUploadSize <= 0 {
		errs = append(errs, "SERVER_MAX_UPLOAD_SIZE must be positive")
	}
	if c.Server.MaxConcurrent <= 0 {
		errs = append(errs, "SERVER_MAX_CONCURRENT must be positive")
	}
	if c.Server.CleanWait <= 0 {
		errs = append(errs, "SERVER_CLEAN_WAIT must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.Burst <= 0 {
		errs = append(errs, "RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}

	// Logging validation
	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	if !logging.ValidFormat(c.Logging.Format) {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return errors.New("validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a one-line summary of the config for logging.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Input: {Path: %q, Encoding: %q, LowMemory: %v}, ", c.Input.Path, c.Input.Encoding, c.Input.LowMemory)
	fmt.Fprintf(&b, "Clean: {DropColumns: %d, GenresPolicy: %q}, ", len(c.Clean.DropColumns), c.Clean.GenresPolicy)
	fmt.Fprintf(&b, "Output: {Path: %q, Orient: %q}, ", c.Output.Path, c.Output.Orient)
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d, MaxUploadSize: %d}, ", c.Server.Host, c.Server.Port, c.Server.MaxUploadSize)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ", c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
