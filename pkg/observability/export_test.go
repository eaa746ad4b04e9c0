package observability

import (
	"context"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// BuildResource exposes buildResource for tests.
func BuildResource(cfg Config) (*resource.Resource, error) {
	return buildResource(context.Background(), cfg)
}

// SamplerFor exposes samplerFor for tests.
func SamplerFor(cfg Config) sdktrace.Sampler {
	return samplerFor(cfg)
}
