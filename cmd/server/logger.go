package main

import (
	"os"

	"github.com/carecal/go-access"
	"github.com/rs/zerolog"
)

// NewLogger builds the process zerolog logger; pretty console output outside
// of production.
func NewLogger(environment string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if environment != "production" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	return logger
}

// zlogAdapter exposes a zerolog logger through the access.Logger interface
type zlogAdapter struct {
	z zerolog.Logger
}

var _ access.Logger = zlogAdapter{}

// NewComponentLogger scopes the adapter to a named component
func NewComponentLogger(z zerolog.Logger, name string) access.Logger {
	return zlogAdapter{z: z.With().Str("component", name).Logger()}
}

func (l zlogAdapter) Debug(msg string, args ...any) { emit(l.z.Debug(), msg, args) }
func (l zlogAdapter) Info(msg string, args ...any)  { emit(l.z.Info(), msg, args) }
func (l zlogAdapter) Warn(msg string, args ...any)  { emit(l.z.Warn(), msg, args) }
func (l zlogAdapter) Error(msg string, args ...any) { emit(l.z.Error(), msg, args) }

// emit treats args as alternating key/value pairs, the convention the rest of
// the module logs with
func emit(e *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, args[i+1])
	}
	e.Msg(msg)
}
