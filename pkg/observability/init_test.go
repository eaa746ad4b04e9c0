package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Sumatoshi-tech/melodist/pkg/observability"
)

// TestDefaultConfig verifies the zero-config CLI defaults.
func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()

	assert.Equal(t, "melodist", cfg.ServiceName)
	assert.Equal(t, observability.ModeCLI, cfg.Mode)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.OTLPEndpoint)
	assert.Positive(t, cfg.ShutdownTimeout)
}

// TestInit_NoEndpoint verifies that without a collector the providers are
// usable no-ops and shut down cleanly.
func TestInit_NoEndpoint(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogOutput = &logs

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	ctx, span := providers.Tracer.Start(context.Background(), "melodic.solve")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	counter, err := providers.Meter.Int64Counter("melodist.test")
	require.NoError(t, err)
	counter.Add(ctx, 1)

	providers.Logger.InfoContext(ctx, "solved")
	assert.Contains(t, logs.String(), "msg=solved")
	assert.Contains(t, logs.String(), "service=melodist")

	require.NoError(t, providers.Shutdown(context.Background()))
}

// TestBuildResource verifies service and mode attributes on the resource.
func TestBuildResource(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = "1.2.3"
	cfg.Mode = observability.ModeServe

	res, err := observability.BuildResource(cfg)
	require.NoError(t, err)

	set := res.Set()

	name, ok := set.Value(attribute.Key("service.name"))
	require.True(t, ok)
	assert.Equal(t, "melodist", name.AsString())

	ver, ok := set.Value(attribute.Key("service.version"))
	require.True(t, ok)
	assert.Equal(t, "1.2.3", ver.AsString())

	mode, ok := set.Value(attribute.Key("melodist.mode"))
	require.True(t, ok)
	assert.Equal(t, "serve", mode.AsString())
}

// TestSamplerFor verifies sampler selection from the config.
func TestSamplerFor(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	assert.Nil(t, observability.SamplerFor(cfg))

	cfg.SampleRatio = 0.25
	assert.Contains(t, observability.SamplerFor(cfg).Description(), "TraceIDRatioBased{0.25}")

	cfg.DebugTrace = true
	assert.Equal(t, "AlwaysOnSampler", observability.SamplerFor(cfg).Description())
}
