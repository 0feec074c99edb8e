package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns a zerolog Logger for the service.
// APP_ENV=dev (or development) uses a human-friendly console writer and
// defaults to debug so booking stages are visible; otherwise JSON at info.
// A parseable level overrides the default.
func NewLogger(env, level string) zerolog.Logger {
	dev := env == "dev" || env == "development"

	lvl := zerolog.InfoLevel
	if dev {
		lvl = zerolog.DebugLevel
	}
	if parsed, err := zerolog.ParseLevel(level); err == nil && level != "" {
		lvl = parsed
	}

	l := zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Str("service", "jetstay").Logger()
	if dev {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			Level(lvl).With().Timestamp().Logger()
	}
	return l
}
