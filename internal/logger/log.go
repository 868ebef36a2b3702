package logger

import (
	"io"
	"os"
	"strings"

	"aggregator/internal/config"

	stdlog "log"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger once at startup.
//
// LOG_PRETTY=true gives a colored console writer for local runs; otherwise
// plain JSON goes to stdout for the log collector. Every line carries the
// service name and instance id so logs from parallel instances stay
// attributable. The stdlib logger is redirected so third-party code that
// calls log.Printf ends up in the same stream.
func Init(cfg config.Config) {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel))); err == nil {
		level = l
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = os.Stdout
	if cfg.LogPretty {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	zlog.Logger = zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("instance", cfg.InstanceID).
		Logger()

	stdlog.SetFlags(0)
	stdlog.SetOutput(zlog.Logger)
}
