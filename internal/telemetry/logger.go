package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with mescore-specific field helpers.
type Logger struct {
	logger zerolog.Logger
	config LoggingConfig
}

// NewLogger builds a logger from the provided configuration.
func NewLogger(cfg LoggingConfig) (*Logger, error) {
	output, err := resolveOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(cfg.Format, "console") {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	switch cfg.TimeFormat {
	case "unix":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	case "unixms":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	default:
		zerolog.TimeFieldFormat = time.RFC3339
	}

	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &Logger{logger: logger, config: cfg}, nil
}

// NewComponentLogger returns a child logger tagged with a component name.
func (l *Logger) NewComponentLogger(component string) *Logger {
	child := l.logger.With().Str("component", component).Logger()
	return &Logger{logger: child, config: l.config}
}

func resolveOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	default:
		if err := os.MkdirAll(filepath.Dir(output), 0o750); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		return file, nil
	}
}

func parseLogLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "fatal":
		return zerolog.FatalLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

type loggerContextKey struct{}

// WithContext stores the logger in a context.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// FromContext retrieves the logger from a context, falling back to a default
// stderr logger when none is present.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerContextKey{}).(*Logger); ok {
		return l
	}
	l, _ := NewLogger(DefaultLoggingConfig())
	return l
}

// WithField returns a logger with an additional field attached.
func (l *Logger) WithField(key string, value any) *Logger {
	child := l.logger.With().Interface(key, value).Logger()
	return &Logger{logger: child, config: l.config}
}

// WithFields returns a logger with multiple additional fields attached.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	child := ctx.Logger()
	return &Logger{logger: child, config: l.config}
}

// WithError returns a logger with an error field attached.
func (l *Logger) WithError(err error) *Logger {
	child := l.logger.With().Err(err).Logger()
	return &Logger{logger: child, config: l.config}
}

// WithOrderID tags log entries with a production order id.
func (l *Logger) WithOrderID(id string) *Logger {
	return l.WithField("order_id", id)
}

// WithWorkstationID tags log entries with a workstation id.
func (l *Logger) WithWorkstationID(id string) *Logger {
	return l.WithField("workstation_id", id)
}

// WithParameter tags log entries with a measured parameter name.
func (l *Logger) WithParameter(parameter string) *Logger {
	return l.WithField("parameter", parameter)
}

func (l *Logger) Trace(msg string) { l.logger.Trace().Msg(msg) }
func (l *Logger) Debug(msg string) { l.logger.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.logger.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.logger.Warn().Msg(msg) }
func (l *Logger) Error(msg string) { l.logger.Error().Msg(msg) }
func (l *Logger) Fatal(msg string) { l.logger.Fatal().Msg(msg) }

func (l *Logger) Tracef(format string, args ...any) { l.logger.Trace().Msgf(format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.logger.Debug().Msgf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logger.Info().Msgf(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logger.Warn().Msgf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logger.Error().Msgf(format, args...) }
func (l *Logger) Fatalf(format string, args ...any) { l.logger.Fatal().Msgf(format, args...) }

// Zerolog exposes the underlying zerolog.Logger for integrations that need it.
func (l *Logger) Zerolog() zerolog.Logger { return l.logger }
