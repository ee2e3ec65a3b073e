package config

import "fmt"

// Validate checks a Config for invalid or missing required values.
//
// go-playground/validator is not used here: this repo's validation needs
// are a handful of cross-field and range checks (backend-specific required
// fields, enum membership) that a struct-tag validator expresses no more
// clearly than plain code, so the dependency earns no real estate in the
// binary or the struct tags.
func Validate(cfg *Config) error {
	if cfg.Rank < 0 {
		return fmt.Errorf("rank must be >= 0, got %d", cfg.Rank)
	}

	if cfg.SessionMap.Object == "" {
		return fmt.Errorf("sessionmap.object must not be empty")
	}
	if cfg.SessionMap.KeysPerOp <= 0 {
		return fmt.Errorf("sessionmap.keys_per_op must be > 0, got %d", cfg.SessionMap.KeysPerOp)
	}

	if err := validateObjectStore(&cfg.ObjectStore); err != nil {
		return err
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		return err
	}

	if cfg.Telemetry.SampleRate < 0 || cfg.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be in [0,1], got %f", cfg.Telemetry.SampleRate)
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be in [1,65535], got %d", cfg.Metrics.Port)
	}

	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be > 0")
	}

	return nil
}

func validateObjectStore(cfg *ObjectStoreConfig) error {
	switch cfg.Backend {
	case "badger":
		if cfg.Badger.Path == "" {
			return fmt.Errorf("objectstore.badger.path is required when backend is badger")
		}
	case "s3":
		if cfg.S3.Bucket == "" {
			return fmt.Errorf("objectstore.s3.bucket is required when backend is s3")
		}
		if cfg.S3.Region == "" {
			return fmt.Errorf("objectstore.s3.region is required when backend is s3")
		}
	case "memory":
		// no required fields
	default:
		return fmt.Errorf("objectstore.backend must be one of badger, s3, memory, got %q", cfg.Backend)
	}
	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	switch cfg.Level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("logging.level must be one of DEBUG, INFO, WARN, ERROR, got %q", cfg.Level)
	}

	switch cfg.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be one of text, json, got %q", cfg.Format)
	}

	if cfg.Output == "" {
		return fmt.Errorf("logging.output must not be empty")
	}

	return nil
}
