// Package observability wires tracing, metrics and structured logging for
// the melodist CLI, MCP server and HTTP server.
package observability

import (
	"io"
	"log/slog"
	"time"
)

// AppMode is how the binary was launched. It is attached to every log
// record and to the telemetry resource.
type AppMode string

// Launch modes.
const (
	ModeCLI   AppMode = "cli"
	ModeMCP   AppMode = "mcp"
	ModeServe AppMode = "serve"
)

const (
	defaultServiceName     = "melodist"
	defaultShutdownTimeout = 5 * time.Second
)

// Config selects exporters, sampling and log output.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Mode           AppMode

	// OTLPEndpoint is the gRPC collector address. Empty keeps tracing and
	// metrics on no-op providers.
	OTLPEndpoint string
	OTLPInsecure bool

	// SampleRatio applies a parent-based ratio sampler when positive.
	// Otherwise the SDK reads OTEL_TRACES_SAMPLER.
	SampleRatio float64

	// DebugTrace samples every trace.
	DebugTrace bool

	// TraceVerbose keeps the per-record pitch.solve spans.
	TraceVerbose bool

	LogLevel slog.Level
	LogJSON  bool

	// LogOutput defaults to stderr. Stdout is reserved for command output
	// and the MCP stdio transport.
	LogOutput io.Writer

	ShutdownTimeout time.Duration
}

// DefaultConfig returns a no-export CLI configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:     defaultServiceName,
		Mode:            ModeCLI,
		LogLevel:        slog.LevelInfo,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}
