// Package logging initializes the process-wide zerolog logger, the Go
// analogue of the source's tracing-subscriber setup: pretty console
// output on a TTY, structured JSON otherwise.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const serviceName = "mojave-sequencer"

// Init builds the base logger. Component sub-loggers are derived from it
// with .With().Str("component", name).Logger() at each call site.
func Init() *zerolog.Logger {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var logger zerolog.Logger
	if isTerminal() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Caller().Logger()
	} else {
		logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()
	}
	return &logger
}

// SetLevel parses a level name from configuration, falling back to info
// on an empty or unrecognized value.
func SetLevel(logger *zerolog.Logger, levelStr string) {
	if levelStr == "" {
		levelStr = "info"
	}

	var level zerolog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
		logger.Warn().Str("configured_level", levelStr).Str("using_level", "info").Msg("unknown log level, defaulting to info")
	}

	zerolog.SetGlobalLevel(level)
	logger.Info().Str("level", level.String()).Msg("log level set")
}

func isTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
