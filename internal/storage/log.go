package storage

import "github.com/rs/zerolog"

// log is disabled until the caller requests output with UseLogger.
var log = zerolog.Nop()

// DisableLog disables all package log output.
func DisableLog() {
	log = zerolog.Nop()
}

// UseLogger routes package log output to logger.
func UseLogger(logger zerolog.Logger) {
	log = logger.With().Str("subsystem", "storage").Logger()
}
