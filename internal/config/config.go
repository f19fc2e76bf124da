package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const envPrefix = "GEN_CONSOLE_"

// Config represents the application configuration
type Config struct {
	API         APIConfig         `json:"api"`
	Preferences PreferencesConfig `json:"preferences"`
	Server      ServerConfig      `json:"server"`
	Database    DatabaseConfig    `json:"database"`
	Logging     LoggingConfig     `json:"logging"`
	Debug       DebugConfig       `json:"debug"`
}

// APIConfig describes the admin backend the console screens talk to
type APIConfig struct {
	BaseURL   string `json:"base_url"   env:"API_BASE_URL"   envDefault:"http://localhost:8080"`
	Token     string `json:"token"      env:"API_TOKEN"`
	Timeout   string `json:"timeout"    env:"API_TIMEOUT"    envDefault:"30s"`
	TraceHTTP bool   `json:"trace_http" env:"API_TRACE_HTTP" envDefault:"false"`
}

// PreferencesConfig locates the local preference store (last used dbUrl etc.)
type PreferencesConfig struct {
	Directory string `json:"directory" env:"PREFS_DIR" envDefault:"~/.config/gen-console/prefs"`
}

// ServerConfig configures the backend served by `gen-console serve`
type ServerConfig struct {
	Port           int      `json:"port"            env:"SERVER_PORT"            envDefault:"8080"`
	Token          string   `json:"token"           env:"SERVER_TOKEN"`
	IgnoreFields   []string `json:"ignore_fields"   env:"SERVER_IGNORE_FIELDS"   envDefault:"id,created_at,updated_at,deleted_at,is_deleted,created_by,updated_by" envSeparator:","`
	OutputDir      string   `json:"output_dir"      env:"SERVER_OUTPUT_DIR"      envDefault:"./generated"`
	AllowedOrigins []string `json:"allowed_origins" env:"SERVER_ALLOWED_ORIGINS" envSeparator:","`
	ReadTimeout    string   `json:"read_timeout"    env:"SERVER_READ_TIMEOUT"    envDefault:"10s"`
	WriteTimeout   string   `json:"write_timeout"   env:"SERVER_WRITE_TIMEOUT"   envDefault:"30s"`
	IntrospectTime string   `json:"introspect_timeout" env:"SERVER_INTROSPECT_TIMEOUT" envDefault:"15s"`
}

// DatabaseConfig represents the account store configuration
type DatabaseConfig struct {
	Path            string `json:"path"               env:"DB_PATH"               envDefault:"~/.local/share/gen-console/accounts.duckdb"`
	MaxConnections  int    `json:"max_connections"    env:"DB_MAX_CONNECTIONS"    envDefault:"10"`
	MaxIdleConns    int    `json:"max_idle_conns"     env:"DB_MAX_IDLE_CONNS"     envDefault:"5"`
	ConnMaxLifetime string `json:"conn_max_lifetime"  env:"DB_CONN_MAX_LIFETIME"  envDefault:"30m"`
	QueryTimeout    string `json:"query_timeout"      env:"DB_QUERY_TIMEOUT"      envDefault:"30s"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level     string `json:"level"      env:"LOG_LEVEL"      envDefault:"info"`                                 // debug, info, warn, error
	Format    string `json:"format"     env:"LOG_FORMAT"     envDefault:"text"`                                 // text, json
	Output    string `json:"output"     env:"LOG_OUTPUT"     envDefault:"stderr"`                               // stdout, stderr, file
	File      string `json:"file"       env:"LOG_FILE"       envDefault:"~/.config/gen-console/logs/app.log"`
	AddSource bool   `json:"add_source" env:"LOG_ADD_SOURCE" envDefault:"false"`
}

// DebugConfig represents debug configuration
type DebugConfig struct {
	Enabled bool `json:"enabled" env:"DEBUG"   envDefault:"false"`
	Verbose bool `json:"verbose" env:"VERBOSE" envDefault:"false"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	return LoadConfigWithOverrides(nil)
}

// LoadConfigWithOverrides loads configuration with optional command-line flag overrides.
// Precedence, lowest first: defaults, config file, environment, flags.
func LoadConfigWithOverrides(flagOverrides map[string]interface{}) (*Config, error) {
	config, err := DefaultConfig()
	if err != nil {
		return nil, err
	}

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		if err := loadConfigFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := applyEnvironmentOverrides(config); err != nil {
		return nil, err
	}

	if flagOverrides != nil {
		applyFlagOverrides(config, flagOverrides)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// DefaultConfig returns the configuration built from struct defaults only
func DefaultConfig() (*Config, error) {
	config := &Config{}
	if err := env.ParseWithOptions(config, env.Options{
		Prefix:      envPrefix,
		Environment: map[string]string{},
	}); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	return config, nil
}

// applyEnvironmentOverrides applies only the variables that are actually set,
// so values from the config file survive unset variables. A variable set to
// its default value still wins over the file.
func applyEnvironmentOverrides(config *Config) error {
	fromEnv := &Config{}
	if err := env.ParseWithOptions(fromEnv, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment variables: %w", err)
	}

	overlay(reflect.ValueOf(config).Elem(), reflect.ValueOf(fromEnv).Elem())

	return nil
}

// overlay copies fields of src into dst whose environment variable is set
func overlay(dst, src reflect.Value) {
	for i := range src.NumField() {
		field := src.Type().Field(i)

		s, d := src.Field(i), dst.Field(i)
		if s.Kind() == reflect.Struct {
			overlay(d, s)
			continue
		}

		key := field.Tag.Get("env")
		if key == "" {
			continue
		}

		if _, ok := os.LookupEnv(envPrefix + key); ok {
			d.Set(s)
		}
	}
}

// loadConfigFromFile loads configuration from a JSON file
func loadConfigFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	mergeConfigs(config, &fileConfig)

	return nil
}

// applyFlagOverrides applies command-line flag overrides to configuration
func applyFlagOverrides(config *Config, overrides map[string]interface{}) {
	for key, value := range overrides {
		switch key {
		case "base-url":
			if str, ok := value.(string); ok && str != "" {
				config.API.BaseURL = str
			}
		case "log-level":
			if str, ok := value.(string); ok && str != "" {
				config.Logging.Level = str
			}
		case "db-path":
			if str, ok := value.(string); ok && str != "" {
				config.Database.Path = str
			}
		case "output-dir":
			if str, ok := value.(string); ok && str != "" {
				config.Server.OutputDir = str
			}
		case "trace-http":
			if b, ok := value.(bool); ok && b {
				config.API.TraceHTTP = true
			}
		case "verbose":
			if b, ok := value.(bool); ok && b {
				config.Debug.Verbose = true
			}
		case "debug":
			if b, ok := value.(bool); ok && b {
				config.Debug.Enabled = true
			}
		}
	}
}

// mergeConfigs merges non-zero source values into the target
func mergeConfigs(target, source *Config) {
	var mergeValues func(t, s reflect.Value)
	mergeValues = func(t, s reflect.Value) {
		if t.Kind() == reflect.Struct {
			for i := range s.NumField() {
				mergeValues(t.Field(i), s.Field(i))
			}

			return
		}

		if s.Kind() == reflect.Bool || !s.IsZero() {
			t.Set(s)
		}
	}

	mergeValues(reflect.ValueOf(target).Elem(), reflect.ValueOf(source).Elem())
}

// validateConfig validates the configuration for common errors
func validateConfig(config *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[strings.ToLower(config.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", config.Logging.Format)
	}

	validLogOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true}
	if !validLogOutputs[strings.ToLower(config.Logging.Output)] {
		return fmt.Errorf("invalid log output: %s (must be stdout, stderr, or file)", config.Logging.Output)
	}

	u, err := url.Parse(config.API.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid api base url: %q (must be an absolute http(s) URL)", config.API.BaseURL)
	}

	durations := map[string]string{
		"api timeout":               config.API.Timeout,
		"database query timeout":    config.Database.QueryTimeout,
		"database conn lifetime":    config.Database.ConnMaxLifetime,
		"server read timeout":       config.Server.ReadTimeout,
		"server write timeout":      config.Server.WriteTimeout,
		"server introspect timeout": config.Server.IntrospectTime,
	}
	for name, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %s", name, value)
		}
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", config.Server.Port)
	}

	if config.Database.MaxConnections <= 0 {
		return fmt.Errorf("database max connections must be positive: %d", config.Database.MaxConnections)
	}

	return nil
}

// Duration parses a duration that validateConfig already accepted
func Duration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config) error {
	configPath := getConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ConfigPath returns the path of the configuration file in use
func ConfigPath() string {
	return getConfigPath()
}

func getConfigPath() string {
	if configPath := os.Getenv(envPrefix + "CONFIG"); configPath != "" {
		return ExpandPath(configPath)
	}

	return filepath.Join(GetConfigDir(), "config.json")
}

// ExpandPath expands ~ to home directory in file paths
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// ExpandAllPaths expands all paths in the configuration
func (c *Config) ExpandAllPaths() {
	c.Preferences.Directory = ExpandPath(c.Preferences.Directory)
	c.Database.Path = ExpandPath(c.Database.Path)
	c.Server.OutputDir = ExpandPath(c.Server.OutputDir)
	c.Logging.File = ExpandPath(c.Logging.File)
}

// GetConfigDir returns the configuration directory
func GetConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".config/gen-console"
	}

	return filepath.Join(homeDir, ".config", "gen-console")
}
