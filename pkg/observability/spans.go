package observability

import (
	"context"
	"slices"

	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// SpanPitchSolve is the span opened for every beat record's pitch search.
// Long lines produce thousands, so Init drops it unless TraceVerbose is set.
const SpanPitchSolve = "pitch.solve"

// SuppressSpans returns a provider whose tracers hand out no-op spans for
// the given names and delegate every other span to tp.
func SuppressSpans(tp trace.TracerProvider, names ...string) trace.TracerProvider {
	return &suppressingProvider{TracerProvider: tp, names: slices.Clone(names)}
}

type suppressingProvider struct {
	trace.TracerProvider

	names []string
}

func (p *suppressingProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return &suppressingTracer{
		Tracer: p.TracerProvider.Tracer(name, opts...),
		noop:   nooptrace.NewTracerProvider().Tracer(name, opts...),
		names:  p.names,
	}
}

type suppressingTracer struct {
	trace.Tracer

	noop  trace.Tracer
	names []string
}

func (t *suppressingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if slices.Contains(t.names, name) {
		return t.noop.Start(ctx, name, opts...)
	}

	return t.Tracer.Start(ctx, name, opts...)
}
