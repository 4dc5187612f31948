// Package telemetry bundles structured logging and Prometheus metrics for
// the mescore services.
package telemetry

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level      string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal"`
	Format     string `yaml:"format" validate:"omitempty,oneof=json console"`
	Output     string `yaml:"output"`
	TimeFormat string `yaml:"time_format" validate:"omitempty,oneof=rfc3339 unix unixms"`
}

// DefaultLoggingConfig returns json logging at info level on stderr.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     "stderr",
		TimeFormat: "rfc3339",
	}
}

// MetricsConfig controls the Prometheus metrics surface.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Namespace     string `yaml:"namespace"`
	ListenAddress string `yaml:"listen_address"`
	Path          string `yaml:"path"`
}

// DefaultMetricsConfig returns an enabled metrics endpoint on :9109.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:       true,
		Namespace:     "mescore",
		ListenAddress: ":9109",
		Path:          "/metrics",
	}
}
