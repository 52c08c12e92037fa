// Package logtrace configures the global zerolog logger and carries request
// identifiers through contexts.
package logtrace

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger points the global logger at stderr with millisecond timestamps and
// sets the global level. An empty level means info.
func InitLogger(level string) error {
	return InitLoggerWithWriter(os.Stderr, level)
}

// InitLoggerWithWriter is InitLogger with a custom destination.
func InitLoggerWithWriter(w io.Writer, level string) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	if strings.TrimSpace(level) == "" {
		level = zerolog.InfoLevel.String()
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
