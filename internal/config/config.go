// Package config loads and validates the configuration for a Session Map
// daemon instance: which rank it owns, which object stores its table, which
// object-store backend persists it, and how logging/telemetry/metrics behave.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the static configuration for one mdsessiond process.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (MDSESSIOND_*), for keys the file sets
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// Load binds no CLI flags. When no configuration file is found, Load
// returns the defaults and no environment variable is read.
type Config struct {
	// Rank is the MDS rank this process owns a Session Map for.
	Rank int `mapstructure:"rank" yaml:"rank"`

	// SessionMap configures the in-memory index and persistence protocol.
	SessionMap SessionMapConfig `mapstructure:"sessionmap" yaml:"sessionmap"`

	// ObjectStore configures the backend that persists the Session Map object.
	ObjectStore ObjectStoreConfig `mapstructure:"objectstore" yaml:"objectstore"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// ShutdownTimeout is the maximum time to wait for a graceful shutdown,
	// including draining the finisher's in-flight object operations.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// SessionMapConfig controls the in-memory index and save/load protocol.
type SessionMapConfig struct {
	// Object is the name of the persisted object, e.g. "mds3_sessionmap".
	// Defaults to "mds<rank>_sessionmap" when empty.
	Object string `mapstructure:"object" yaml:"object"`

	// KeysPerOp caps how many omap keys a single compound operation may
	// touch on a save or load. Mirrors mds_sessionmap_keys_per_op.
	KeysPerOp int `mapstructure:"keys_per_op" yaml:"keys_per_op"`

	// AllowLegacyLoad is read from the config file but not consulted by the
	// load path: a Session Map still in the legacy single-blob encoding is
	// always loaded and upgraded, whatever this field is set to.
	AllowLegacyLoad bool `mapstructure:"allow_legacy_load" yaml:"allow_legacy_load"`
}

// ObjectStoreConfig selects and configures the backend that persists the
// Session Map object. Exactly one backend's settings are meaningful,
// selected by Backend.
type ObjectStoreConfig struct {
	// Backend selects the object-store implementation.
	// Valid values: "badger", "s3", "memory".
	Backend string `mapstructure:"backend" yaml:"backend"`

	Badger BadgerStoreConfig `mapstructure:"badger" yaml:"badger"`
	S3     S3StoreConfig     `mapstructure:"s3" yaml:"s3"`
}

// BadgerStoreConfig configures the embedded badger-backed object store.
// A badger database plays the role of an OSD: each named object maps to
// a key prefix, and omap entries are ordered keys beneath that prefix.
type BadgerStoreConfig struct {
	// Path is the directory for the badger database files.
	Path string `mapstructure:"path" yaml:"path"`
}

// S3StoreConfig configures the S3-backed object store. Objects map to key
// prefixes in the bucket; omap paging uses ListObjectsV2 with Prefix and
// StartAfter to express the exclusive-start semantics of an OSD omap read.
type S3StoreConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
	MaxRetries      int    `mapstructure:"max_retries" yaml:"max_retries,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// Load loads configuration from file, environment, and defaults, applying
// defaults and validating the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !found {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper's environment variable and config-file search
// behavior. Environment variables use the MDSESSIOND_ prefix.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("MDSESSIOND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reads the configuration file if it exists. The second
// return value reports whether a file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// durationDecodeHook converts strings like "30s" into time.Duration values.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory, preferring
// XDG_CONFIG_HOME and falling back to ~/.config.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "mdsessiond")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "mdsessiond")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
