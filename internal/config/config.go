// Package config loads and validates the mescore runtime configuration
// from a YAML file, layering file values over built-in defaults.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"mescore/internal/telemetry"
)

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Driver is the persistence backend: memory, sqlite or postgres.
	Driver string `yaml:"driver" validate:"required,oneof=memory sqlite postgres"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `yaml:"sqlite_path" validate:"required_if=Driver sqlite"`

	// PostgresDSN is the connection string used by the postgres driver.
	PostgresDSN string `yaml:"postgres_dsn" validate:"required_if=Driver postgres"`
}

// SPCConfig tunes the statistical process control engine.
type SPCConfig struct {
	// Window is the rolling window used to compute control limits.
	Window int `yaml:"window" validate:"gt=1"`
}

// ArchiveS3Config carries bucket settings for the s3 archive driver.
type ArchiveS3Config struct {
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
}

// ArchiveConfig selects where state snapshots are archived.
type ArchiveConfig struct {
	// Driver is the archive backend: fs, s3 or memory.
	Driver string `yaml:"driver" validate:"required,oneof=fs s3 memory"`

	// FSRoot is the directory used by the fs driver.
	FSRoot string `yaml:"fs_root" validate:"required_if=Driver fs"`

	S3 ArchiveS3Config `yaml:"s3"`
}

// Config is the full mescore runtime configuration.
type Config struct {
	Storage StorageConfig           `yaml:"storage" validate:"required"`
	SPC     SPCConfig               `yaml:"spc" validate:"required"`
	Archive ArchiveConfig           `yaml:"archive" validate:"required"`
	Logging telemetry.LoggingConfig `yaml:"logging" validate:"required"`
	Metrics telemetry.MetricsConfig `yaml:"metrics"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Driver:     "sqlite",
			SQLitePath: "data/mescore.db",
		},
		SPC: SPCConfig{Window: 50},
		Archive: ArchiveConfig{
			Driver: "fs",
			FSRoot: "data/archive",
		},
		Logging: telemetry.DefaultLoggingConfig(),
		Metrics: telemetry.DefaultMetricsConfig(),
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the struct tags on the full configuration tree.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}
