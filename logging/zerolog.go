package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ZerologAdapter wraps zerolog.Logger to implement the Logger interface.
// Arguments are slog-style alternating key/value pairs.
type ZerologAdapter struct {
	zerolog.Logger
}

// NewZerologAdapter creates a Logger from a zerolog.Logger.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{Logger: logger}
}

// NewConsoleLogger returns a human-friendly colored logger writing to out,
// intended for interactive use.
func NewConsoleLogger(out io.Writer, level LogLevel, component string) *ZerologAdapter {
	if out == nil {
		out = os.Stderr
	}

	// colors only for files such as a terminal
	_, isFile := out.(*os.File)

	ctx := zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    !isFile,
		TimeFormat: time.RFC3339,
	}).Level(zerologLevel(level)).With().Timestamp()

	if component != "" {
		ctx = ctx.Str("component", component)
	}

	return NewZerologAdapter(ctx.Logger())
}

// New builds the Logger described by cfg: a zerolog console logger for the
// "console" format, a RuntimeLogger otherwise.
func New(cfg *LoggerConfig) Logger {
	if cfg != nil && cfg.Format == "console" {
		return NewConsoleLogger(cfg.Output, cfg.Level, cfg.Component)
	}
	return NewLogger(cfg)
}

func zerologLevel(l LogLevel) zerolog.Level {
	switch l {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug logs a debug message.
func (z *ZerologAdapter) Debug(msg string, args ...any) { z.emit(z.Logger.Debug(), msg, args) }

// Info logs an informational message.
func (z *ZerologAdapter) Info(msg string, args ...any) { z.emit(z.Logger.Info(), msg, args) }

// Warn logs a warning message.
func (z *ZerologAdapter) Warn(msg string, args ...any) { z.emit(z.Logger.Warn(), msg, args) }

// Error logs an error message.
func (z *ZerologAdapter) Error(msg string, args ...any) { z.emit(z.Logger.Error(), msg, args) }

func (z *ZerologAdapter) emit(e *zerolog.Event, msg string, args []any) {
	if e == nil {
		return
	}

	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}

		if i+1 == len(args) {
			e = e.Interface("!BADKEY", args[i])
			break
		}

		switch v := args[i+1].(type) {
		case error:
			e = e.AnErr(key, v)
		case fmt.Stringer:
			e = e.Stringer(key, v)
		default:
			e = e.Interface(key, v)
		}
	}

	e.Msg(msg)
}

// With returns a copy of z that attaches args to every entry.
func (z *ZerologAdapter) With(args ...any) *ZerologAdapter {
	ctx := z.Logger.With()

	for i := 0; i+1 < len(args); i += 2 {
		ctx = ctx.Interface(fmt.Sprint(args[i]), args[i+1])
	}

	return NewZerologAdapter(ctx.Logger())
}
