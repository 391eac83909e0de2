package cliconfig

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger returns the CLI's console logger at the given level. An unknown
// level falls back to info.
func Logger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}
