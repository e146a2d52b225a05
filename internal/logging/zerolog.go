package logging

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// zlogger adapts a zerolog.Logger to Logger.
type zlogger struct {
	l zerolog.Logger
}

// NewZerolog wraps an existing zerolog logger, for components that are
// handed one by their owner.
func NewZerolog(l zerolog.Logger) Logger { return &zlogger{l: l} }

// Zerolog returns the zerolog logger behind l, or a disabled logger when l
// is backed by something else.
func Zerolog(l Logger) zerolog.Logger {
	if z, ok := l.(*zlogger); ok {
		return z.l
	}
	return zerolog.Nop()
}

func newZerolog(cfg Config, out io.Writer) Logger {
	if !strings.EqualFold(cfg.Format, "json") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	ctx := zerolog.New(out).Level(zerologLevel(cfg.Level)).With().Timestamp()
	if cfg.AddSource {
		ctx = ctx.Caller()
	}
	return &zlogger{l: ctx.Logger()}
}

func (z *zlogger) With(fields ...Field) Logger {
	return &zlogger{l: z.l.With().Fields(toMap(fields)).Logger()}
}

func (z *zlogger) Debug(ctx context.Context, msg string, fields ...Field) {
	z.l.Debug().Ctx(ctx).Fields(toMap(fields)).Msg(msg)
}

func (z *zlogger) Info(ctx context.Context, msg string, fields ...Field) {
	z.l.Info().Ctx(ctx).Fields(toMap(fields)).Msg(msg)
}

func (z *zlogger) Warn(ctx context.Context, msg string, fields ...Field) {
	z.l.Warn().Ctx(ctx).Fields(toMap(fields)).Msg(msg)
}

func (z *zlogger) Error(ctx context.Context, msg string, fields ...Field) {
	z.l.Error().Ctx(ctx).Fields(toMap(fields)).Msg(msg)
}

func toMap(fields []Field) map[string]any {
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = fieldValue(f.Value)
	}
	return m
}

func zerologLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
