package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/claimflow/claims/internal/shared/config"
)

// New builds the process logger: JSON lines in production, console output in
// development. Unknown levels fall back to info.
func New(cfg config.LogConfig, env string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(level).With().
		Timestamp().
		Str("service", "claims").
		Logger()
}

// Nop returns a logger that discards everything, for tests and optional wiring.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
