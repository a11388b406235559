package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog logger with component-scoped constructors
type Logger struct {
	logger zerolog.Logger
}

var (
	// Default is the process-wide logger, set by Init
	Default *Logger

	initOnce sync.Once
)

// Init configures the process-wide logger. Production writes JSON lines to
// stdout; other environments use the console writer.
func Init() {
	initOnce.Do(func() {
		level := getLogLevel()

		zerolog.TimeFieldFormat = time.RFC3339
		zerolog.SetGlobalLevel(level)

		var out io.Writer = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		if isProduction() {
			out = os.Stdout
		}
		Default = &Logger{logger: zerolog.New(out).With().Timestamp().Logger()}

		Default.Info().
			Str("level", level.String()).
			Msg("Logger initialized")
	})
}

// New creates a logger writing JSON lines to w at the given level
func New(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{logger: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

func isProduction() bool {
	return os.Getenv("CRAWLER_ENVIRONMENT") == "production"
}

// getLogLevel reads LOG_LEVEL, defaulting to debug outside production
func getLogLevel() zerolog.Level {
	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		if isProduction() {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// WithStr returns a child logger carrying a string field
func (l *Logger) WithStr(key, value string) *Logger {
	return &Logger{logger: l.logger.With().Str(key, value).Logger()}
}

func (l *Logger) Debug() *zerolog.Event { return l.logger.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.logger.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.logger.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.logger.Error() }
func (l *Logger) Fatal() *zerolog.Event { return l.logger.Fatal() }

// Info logs a formatted message on the default logger
func Info(format string, v ...any) {
	get().Info().Msgf(format, v...)
}

// Warn logs a formatted warning on the default logger
func Warn(format string, v ...any) {
	get().Warn().Msgf(format, v...)
}

func get() *Logger {
	if Default == nil {
		Init()
	}
	return Default
}

func component(name string) *Logger {
	return get().WithStr("component", name)
}

// ForExtractor creates a logger for a specific extractor
func ForExtractor(name string) *Logger {
	return get().WithStr("extractor", name)
}

// ForOrchestrator creates a logger for a retailer crawl run
func ForOrchestrator(retailer string) *Logger {
	return component("orchestrator").WithStr("retailer", retailer)
}

func ForFetcher() *Logger   { return component("fetcher") }
func ForProxy() *Logger     { return component("proxy") }
func ForWorker() *Logger    { return component("worker") }
func ForPublisher() *Logger { return component("publisher") }
func ForCache() *Logger     { return component("cache") }
