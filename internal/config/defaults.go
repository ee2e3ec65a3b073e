package config

import (
	"fmt"
	"strings"
	"time"
)

// ApplyDefaults fills in any unspecified fields with sensible defaults.
// Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applySessionMapDefaults(&cfg.SessionMap, cfg.Rank)
	applyObjectStoreDefaults(&cfg.ObjectStore)
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applySessionMapDefaults(cfg *SessionMapConfig, rank int) {
	if cfg.Object == "" {
		cfg.Object = fmt.Sprintf("mds%d_sessionmap", rank)
	}
	if cfg.KeysPerOp == 0 {
		// Mirrors the historical mds_sessionmap_keys_per_op default.
		cfg.KeysPerOp = 1024
	}
}

func applyObjectStoreDefaults(cfg *ObjectStoreConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "badger"
	}

	if cfg.Backend == "badger" && cfg.Badger.Path == "" {
		cfg.Badger.Path = "/var/lib/mdsessiond/badger"
	}

	if cfg.Backend == "s3" && cfg.S3.MaxRetries == 0 {
		cfg.S3.MaxRetries = 3
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// GetDefaultConfig returns a Config with all default values applied,
// suitable for a single-rank development instance.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Rank: 0,
		ObjectStore: ObjectStoreConfig{
			Backend: "badger",
		},
		Logging: LoggingConfig{},
	}

	ApplyDefaults(cfg)
	return cfg
}
