package logger

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type contextKey string

const LoggerKey contextKey = "logger"

type Logger struct {
	*zerolog.Logger
}

// New creates a service logger on stdout. Development gets the console
// writer, everything else JSON.
func New(service string) *Logger {
	var out io.Writer = os.Stdout
	if isDevelopment() {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}
	return NewWithWriter(service, out)
}

// NewWithWriter is New with an explicit output, mostly for tests
func NewWithWriter(service string, w io.Writer) *Logger {
	hostname, _ := os.Hostname()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "@timestamp" // ELK compatible

	logger := zerolog.New(w).
		With().
		Timestamp().
		Str("service", service).
		Str("hostname", hostname).
		Str("environment", getEnv("ENVIRONMENT", "development")).
		Logger()

	return &Logger{&logger}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	logger := zerolog.Nop()
	return &Logger{&logger}
}

// WithContext returns a logger from context or creates a new one
func WithContext(ctx context.Context, service string) *Logger {
	if logger, ok := ctx.Value(LoggerKey).(*Logger); ok {
		return logger
	}
	return New(service)
}

// FromContext returns the logger carried by ctx, or fallback. A nil fallback
// means discard.
func FromContext(ctx context.Context, fallback *Logger) *Logger {
	if logger, ok := ctx.Value(LoggerKey).(*Logger); ok {
		return logger
	}
	if fallback == nil {
		return Nop()
	}
	return fallback
}

// ToContext adds logger to context
func (l *Logger) ToContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, LoggerKey, l)
}

// WithRequestID adds request/correlation ID for tracing
func (l *Logger) WithRequestID(requestID string) *Logger {
	logger := l.Logger.With().Str("request_id", requestID).Logger()
	return &Logger{&logger}
}

// WithJob adds job context for cron jobs
func (l *Logger) WithJob(jobName string) *Logger {
	logger := l.Logger.With().
		Str("job_name", jobName).
		Str("job_type", "cron").
		Logger()
	return &Logger{&logger}
}

// WithRun adds keeper run context
func (l *Logger) WithRun(runID, runName, targetURL string) *Logger {
	logger := l.Logger.With().
		Str("run_id", runID).
		Str("run_name", runName).
		Str("target_url", targetURL).
		Logger()
	return &Logger{&logger}
}

// LogJobStart logs job execution start
func (l *Logger) LogJobStart(jobName string, schedule string) {
	l.Info().
		Str("action", "job_start").
		Str("job_name", jobName).
		Str("schedule", schedule).
		Msg("Starting job execution")
}

// LogJobComplete logs job completion with metrics
func (l *Logger) LogJobComplete(jobName string, duration time.Duration, itemsProcessed int, errors int) {
	l.Info().
		Str("action", "job_complete").
		Str("job_name", jobName).
		Dur("duration", duration).
		Int("items_processed", itemsProcessed).
		Int("error_count", errors).
		Bool("has_errors", errors > 0).
		Msg("Job execution completed")
}

// LogCycle logs the outcome of one extension cycle
func (l *Logger) LogCycle(cycle int, requestID string, done bool, duration time.Duration) {
	l.Info().
		Str("action", "extension_cycle").
		Int("cycle", cycle).
		Str("request_group_id", requestID).
		Bool("done", done).
		Dur("duration", duration).
		Msg("Extension cycle finished")
}

// LogRunEnd logs how a keeper run ended. Cancellation is not an error.
func (l *Logger) LogRunEnd(outcome string, cycles int, duration time.Duration, err error) {
	event := l.Info()
	if err != nil && !errors.Is(err, context.Canceled) {
		event = l.Error().Err(err)
	}

	event.
		Str("action", "run_"+outcome).
		Int("cycles", cycles).
		Dur("duration", duration).
		Msg("Session keeper run ended")
}

// LogAPICall logs external API calls
func (l *Logger) LogAPICall(method, url string, statusCode int, duration time.Duration, err error) {
	event := l.Debug()
	if err != nil {
		event = l.Error().Err(err)
	}

	event.
		Str("action", "api_call").
		Str("method", method).
		Str("url", url).
		Int("status_code", statusCode).
		Dur("duration", duration).
		Bool("success", err == nil).
		Msg("External API call")
}

// SetupLogger sets the global level from LOG_LEVEL. Development always
// logs at debug.
func SetupLogger() {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if isDevelopment() {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
}

func isDevelopment() bool {
	return getEnv("ENVIRONMENT", "development") == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
