package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. DEV environments get console output, everything
// else gets JSON lines on stderr.
func New(level, env string) zerolog.Logger {
	var w io.Writer = os.Stderr
	if env == "DEV" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ParseLevel falls back to info for unknown or empty levels.
func ParseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

// TokenPrefix returns a short prefix of a credential that is safe to log.
func TokenPrefix(token string) string {
	if len(token) <= 8 {
		return "…"
	}
	return token[:8] + "…"
}
