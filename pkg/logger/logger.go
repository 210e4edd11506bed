package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

var (
	// Log is the global logger instance
	Log zerolog.Logger
)

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	Log = New(os.Stdout, "console")
}

// New builds a logger writing to w. Format "json" emits one JSON object per
// line; anything else uses the colored console writer.
func New(w io.Writer, format string) zerolog.Logger {
	out := w
	if !strings.EqualFold(format, "json") {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: "2006-01-02 15:04:05",
		}
	}

	return zerolog.New(out).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Configure replaces the global logger with one using the given format and level.
func Configure(format, levelStr string) {
	Log = New(os.Stdout, format)
	SetLevel(levelStr)
}

// SetLevel sets the log level
func SetLevel(levelStr string) {
	level := zerolog.InfoLevel
	if trimmed := strings.ToLower(strings.TrimSpace(levelStr)); trimmed != "" {
		parsed, err := zerolog.ParseLevel(trimmed)
		if err != nil {
			Log.Warn().Str("level", levelStr).Msg("invalid log level, defaulting to info")
		} else {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
	Log = Log.Level(level)
}
