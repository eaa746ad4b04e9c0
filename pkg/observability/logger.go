package observability

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

type problemKey struct{}

// WithProblem tags ctx with the name of the problem being solved. Records
// logged under ctx carry it as the "problem" attribute.
func WithProblem(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}

	return context.WithValue(ctx, problemKey{}, name)
}

// ProblemFrom returns the problem name set by WithProblem.
func ProblemFrom(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(problemKey{}).(string)

	return name, ok
}

// NewLogger returns the process logger for cfg: text or JSON on
// cfg.LogOutput, wrapped in a ContextHandler.
func NewLogger(cfg Config) *slog.Logger {
	out := cfg.LogOutput
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var h slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.LogJSON {
		h = slog.NewJSONHandler(out, opts)
	}

	h = h.WithAttrs([]slog.Attr{
		slog.String("service", cfg.ServiceName),
		slog.String("mode", string(cfg.Mode)),
	})

	return slog.New(ContextHandler{inner: h})
}

// ContextHandler adds the active span and the problem name from the
// record's context.
type ContextHandler struct {
	inner slog.Handler
}

// NewContextHandler wraps inner.
func NewContextHandler(inner slog.Handler) ContextHandler {
	return ContextHandler{inner: inner}
}

func (h ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h ContextHandler) Handle(ctx context.Context, rec slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		rec.AddAttrs(slog.String("trace_id", sc.TraceID().String()), slog.String("span_id", sc.SpanID().String()))
	}

	if name, ok := ProblemFrom(ctx); ok {
		rec.AddAttrs(slog.String("problem", name))
	}

	return h.inner.Handle(ctx, rec) //nolint:wrapcheck // handler errors pass through unchanged.
}

func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{inner: h.inner.WithGroup(name)}
}
