package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

// Options selects where log records go.
type Options struct {
	// Console receives text records. Nil disables console output.
	Console io.Writer
	// File receives JSON records. Nil disables file output.
	File io.Writer
	// Journal adds the systemd journal. When journald is unreachable a
	// warning goes to the other sinks.
	Journal bool
	Level   slog.Leveler
}

// New builds a logger that fans records out to every configured sink.
// With no sinks configured records are discarded.
func New(opts Options) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: opts.Level}
	var handlers []slog.Handler
	if opts.Console != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.Console, hopts))
	}
	if opts.File != nil {
		handlers = append(handlers, slog.NewJSONHandler(opts.File, hopts))
	}
	var journalErr error
	if opts.Journal {
		h, err := slogjournal.NewHandler(&slogjournal.Options{
			Level:        opts.Level,
			ReplaceGroup: journalKey,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				a.Key = journalKey(a.Key)
				return a
			},
		})
		if err != nil {
			journalErr = err
		} else {
			handlers = append(handlers, h)
		}
	}
	if len(handlers) == 0 {
		handlers = append(handlers, slog.NewTextHandler(io.Discard, hopts))
	}
	h := slogmulti.Fanout(handlers...)
	if journalErr != nil {
		r := slog.NewRecord(time.Now(), slog.LevelWarn, "systemd journal unavailable", 0)
		r.AddAttrs(slog.Any("err", journalErr))
		_ = h.Handle(context.Background(), r)
	}
	return slog.New(h)
}

// journalKey maps an attribute key to the journal field alphabet.
func journalKey(k string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, strings.ToUpper(k))
}

// ParseLevel maps a level name to a slog level. Unknown names yield info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

type ctxKey struct{}

// NewContext returns a copy of ctx with the logger stored.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves a logger from ctx or returns slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
