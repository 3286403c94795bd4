package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/angelmondragon/shopfloor-backend/pkg/env"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options configures the structured logger. Format defaults to
// SHOPFLOOR_LOG_FORMAT, then json.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	WarnStack   bool
	Format      string
	Output      io.Writer
}

// Logger writes zerolog entries enriched with fields carried on the context.
type Logger struct {
	root      zerolog.Logger
	warnStack bool
}

type entryKey struct{}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	format := opts.Format
	if format == "" {
		format = env.Get("SHOPFLOOR_LOG_FORMAT", FormatJSON)
	}
	if format == FormatConsole {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			NoColor:    env.Bool("SHOPFLOOR_LOG_NO_COLOR", false),
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	root := zerolog.New(out).
		Level(opts.Level).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger()
	return &Logger{root: root, warnStack: opts.WarnStack}
}

// Nop discards everything; used by tests and optional collaborators.
func Nop() *Logger {
	return &Logger{root: zerolog.Nop()}
}

// ParseLevel maps a config string onto a zerolog level, defaulting to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) entry(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if e, ok := ctx.Value(entryKey{}).(*zerolog.Logger); ok {
			return e
		}
	}
	return &l.root
}

func (l *Logger) extend(ctx context.Context, build func(zerolog.Context) zerolog.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	child := build(l.entry(ctx).With()).Logger()
	return context.WithValue(ctx, entryKey{}, &child)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.extend(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Interface(key, value)
	})
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	return l.extend(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Fields(fields)
	})
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

func (l *Logger) WithUserID(ctx context.Context, userID string) context.Context {
	return l.WithField(ctx, "user_id", userID)
}

func (l *Logger) WithActorRole(ctx context.Context, role string) context.Context {
	return l.WithField(ctx, "actor_role", role)
}

func (l *Logger) WithWorkOrderID(ctx context.Context, workOrderID string) context.Context {
	return l.WithField(ctx, "work_order_id", workOrderID)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.entry(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.entry(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	ev := l.entry(ctx).Warn()
	if l.warnStack {
		ev = ev.Str("stack", stack())
	}
	ev.Msg(msg)
}

func (l *Logger) Error(ctx context.Context, msg string, err error) {
	l.entry(ctx).Error().Err(err).Str("stack", stack()).Msg(msg)
}

func stack() string {
	return strings.TrimSpace(string(debug.Stack()))
}
