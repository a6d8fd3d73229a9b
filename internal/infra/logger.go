package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger constructs a zerolog.Logger with sane defaults for the service.
// Extra sinks receive the raw JSON lines alongside stdout.
func NewLogger(appEnv string, sinks ...io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}

	var stdout io.Writer = os.Stdout
	if appEnv == "development" {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	var out io.Writer = stdout
	if len(sinks) > 0 {
		writers := append([]io.Writer{stdout}, sinks...)
		out = zerolog.MultiLevelWriter(writers...)
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Logger aliases the zerolog.Logger so callers outside the infra package can
// depend on the logging contract without importing the third-party module
// directly.
type Logger = zerolog.Logger
