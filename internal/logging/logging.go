package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const service = "marquee"

// Init configures the global zerolog logger: pretty console output in
// development, JSON everywhere else.
func Init(env string) {
	var w io.Writer = os.Stdout
	level := zerolog.InfoLevel
	if IsDevelopment(env) {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		level = zerolog.DebugLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(w).With().
		Timestamp().
		Str("service", service).
		Logger()
}

func IsDevelopment(env string) bool {
	return env == "" || env == "development" || env == "dev"
}
