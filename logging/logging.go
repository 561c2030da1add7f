package logging

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logger zerolog.Logger
	once   sync.Once
)

// Get returns the process wide logger. Decision traces are only emitted
// at debug level, so NO_DEBUG keeps long simulation runs quiet. The
// logger itself accepts everything, the global level filters.
func Get() zerolog.Logger {
	once.Do(func() {
		logLevel := zerolog.DebugLevel
		if os.Getenv("NO_DEBUG") != "" {
			logLevel = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(logLevel)

		console := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}

		logger = zerolog.New(console).Level(zerolog.TraceLevel).With().Timestamp().Caller().Logger()
	})

	return logger
}

// SetLevel changes the level of every logger handed out by Get, in both
// directions. An empty or unknown level leaves the current one untouched.
func SetLevel(level string) bool {
	if level == "" {
		return false
	}

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return false
	}

	Get()
	zerolog.SetGlobalLevel(parsed)
	return true
}
