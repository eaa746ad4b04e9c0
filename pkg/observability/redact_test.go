package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/melodist/pkg/observability"
)

func redactedAttrs(t *testing.T, log *slog.Logger, attrs ...attribute.KeyValue) map[attribute.Key]attribute.Value {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(observability.NewSpanRedactor(sdktrace.NewSimpleSpanProcessor(exporter), log)),
	)

	_, span := tp.Tracer("test").Start(context.Background(), "melodic.solve")
	span.SetAttributes(attrs...)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.NoError(t, tp.Shutdown(context.Background()))

	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range spans[0].Attributes {
		out[kv.Key] = kv.Value
	}

	return out
}

// TestSpanRedactor_Namespaces verifies only melodist namespaces are
// exported.
func TestSpanRedactor_Namespaces(t *testing.T) {
	t.Parallel()

	got := redactedAttrs(t, nil,
		attribute.Int("solver.constraints", 3),
		attribute.Int("beat.results", 2),
		attribute.Int("pitch.visits", 40),
		attribute.String("mcp.tool", "melodist_solve"),
		attribute.String("http.route", "/solve"),
		attribute.Bool("error", true),
		attribute.String("request.body", "line: C D E"),
		attribute.String("user.email", "a@b.c"),
	)

	assert.Len(t, got, 6)
	assert.Contains(t, got, attribute.Key("solver.constraints"))
	assert.Contains(t, got, attribute.Key("error"))
	assert.NotContains(t, got, attribute.Key("request.body"))
	assert.NotContains(t, got, attribute.Key("user.email"))
}

// TestSpanRedactor_Truncates verifies long strings are cut on a rune
// boundary.
func TestSpanRedactor_Truncates(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("C", observability.MaxAttrValueLen-1) + "♯" + "D E F"

	got := redactedAttrs(t, nil,
		attribute.String("melodist.line", long),
		attribute.String("melodist.short", "C D"),
	)

	line := got["melodist.line"].AsString()
	assert.Equal(t, strings.Repeat("C", observability.MaxAttrValueLen-1)+"...", line)
	assert.Equal(t, "C D", got["melodist.short"].AsString())
}

// TestSpanRedactor_LogsDropped verifies dropped keys are reported when a
// logger is set.
func TestSpanRedactor_LogsDropped(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	log := slog.New(slog.NewTextHandler(&buf, nil))

	redactedAttrs(t, log, attribute.String("response.body", "{}"), attribute.Int("pitch.actors", 4))

	assert.Contains(t, buf.String(), "key=response.body")
	assert.NotContains(t, buf.String(), "pitch.actors")
}
