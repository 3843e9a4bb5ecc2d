package main

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/ytgrab/ytgrab/client"
)

// warnLogger routes the client's pipeline warnings through zerolog.
type warnLogger struct {
	log zerolog.Logger
}

func (l warnLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func newLogger(level string) client.Logger {
	lvl := zerolog.WarnLevel
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			lvl = parsed
		}
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger()
	return warnLogger{log: log}
}
