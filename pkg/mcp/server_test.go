package mcp

import (
	"context"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/melodist/pkg/observability"
)

func TestNewServer_ToolsRegistered(t *testing.T) {
	t.Parallel()

	srv := NewServer(ServerDeps{})

	assert.Equal(t, []string{ToolNameInstruments, ToolNameParse, ToolNameSolve}, srv.ListToolNames())
}

func TestServer_Run_CancelledContext(t *testing.T) {
	t.Parallel()

	srv := NewServer(ServerDeps{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, srv.Run(ctx))
}

func TestValidateText(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, validateText("", ErrEmptyLine), ErrEmptyLine)
	require.ErrorIs(t, validateText(string(make([]byte, MaxInputBytes+1)), ErrEmptyLine), ErrInputTooLarge)
	require.NoError(t, validateText("C D E", ErrEmptyLine))
}

func TestHandleSolve_Timeout(t *testing.T) {
	t.Parallel()

	srv := NewServer(ServerDeps{SolveTimeout: time.Nanosecond})

	result, _, err := srv.handleSolve(context.Background(), &mcpsdk.CallToolRequest{}, SolveInput{
		Problem: `{"line": "<C-Major: I> C D E F", "range": "C:4..C:6", "constraints": [{"type": "chordal", "notes": [0]}]}`,
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestWithMetrics_RecordsRequests(t *testing.T) {
	t.Parallel()

	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))

	red, err := observability.NewREDMetrics(provider.Meter("test"))
	require.NoError(t, err)

	srv := NewServer(ServerDeps{})
	handler := instrumented(nil, red, ToolNameParse, srv.handleParse)

	result, _, err := handler(context.Background(), &mcpsdk.CallToolRequest{}, ParseInput{Line: "C D"})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.NotEmpty(t, rm.ScopeMetrics)
	assert.NotEmpty(t, rm.ScopeMetrics[0].Metrics)
}

// TestInstrumented_Tracing verifies the tool span and the trace_id appended
// to the result.
func TestInstrumented_Tracing(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	srv := NewServer(ServerDeps{})
	handler := instrumented(tp.Tracer("test"), nil, ToolNameParse, srv.handleParse)

	result, _, err := handler(context.Background(), &mcpsdk.CallToolRequest{}, ParseInput{Line: "C D"})
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "mcp."+ToolNameParse, spans[0].Name)

	last, ok := result.Content[len(result.Content)-1].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.Equal(t, "trace_id="+spans[0].SpanContext.TraceID().String(), last.Text)
}
