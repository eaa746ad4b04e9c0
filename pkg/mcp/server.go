// Package mcp serves melodist parsing and solving as Model Context Protocol
// tools.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/melodist/pkg/instrument"
	"github.com/Sumatoshi-tech/melodist/pkg/observability"
	"github.com/Sumatoshi-tech/melodist/pkg/solver/melodic"
	"github.com/Sumatoshi-tech/melodist/pkg/version"
)

const serverName = "melodist"

// ServerDeps are the collaborators of a Server. Every field is optional.
type ServerDeps struct {
	Logger  *slog.Logger
	Metrics *observability.REDMetrics
	Tracer  trace.Tracer

	// Catalog resolves instrument names. Nil means instrument.Builtin.
	Catalog *instrument.Catalog

	// SolverDefaults apply to every solve before the problem's own settings.
	SolverDefaults []melodic.Option

	// SolveTimeout bounds one solve. Zero means unbounded.
	SolveTimeout time.Duration
}

// Server is an MCP server with the melodist tools registered.
type Server struct {
	inner *mcpsdk.Server
	tools []string

	logger   *slog.Logger
	metrics  *observability.REDMetrics
	tracer   trace.Tracer
	catalog  *instrument.Catalog
	defaults []melodic.Option
	timeout  time.Duration
}

// NewServer builds the server and registers the solve, parse and
// instruments tools.
func NewServer(deps ServerDeps) *Server {
	s := &Server{
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
		catalog:  deps.Catalog,
		defaults: deps.SolverDefaults,
		timeout:  deps.SolveTimeout,
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	if s.catalog == nil {
		s.catalog = instrument.Builtin()
	}

	s.inner = mcpsdk.NewServer(
		&mcpsdk.Implementation{Name: serverName, Version: version.Version},
		&mcpsdk.ServerOptions{Logger: s.logger},
	)

	addTool(s, ToolNameSolve, solveToolDescription, s.handleSolve)
	addTool(s, ToolNameParse, parseToolDescription, s.handleParse)
	addTool(s, ToolNameInstruments, instrumentsToolDescription, s.handleInstruments)

	return s
}

// ListToolNames returns the registered tool names, sorted.
func (s *Server) ListToolNames() []string {
	names := slices.Clone(s.tools)
	slices.Sort(names)

	return names
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport serves over transport until ctx is cancelled or the
// client disconnects.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	if err := s.inner.Run(ctx, transport); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

type toolHandler[In any] = func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error)

func addTool[In any](s *Server, name, description string, h toolHandler[In]) {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{Name: name, Description: description}, instrumented(s.tracer, s.metrics, name, h))
	s.tools = append(s.tools, name)
}

// instrumented runs h inside an "mcp.<tool>" span and records the call in
// red. A sampled call gets its trace_id appended to the result content so
// clients can find the trace.
func instrumented[In any](tracer trace.Tracer, red *observability.REDMetrics, name string, h toolHandler[In]) toolHandler[In] {
	if tracer == nil && red == nil {
		return h
	}

	op := "mcp." + name

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		var span trace.Span

		if tracer != nil {
			ctx, span = tracer.Start(ctx, op,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attribute.String("mcp.tool", name)),
			)
			defer span.End()
		}

		if red != nil {
			defer red.TrackInflight(ctx, op)()
		}

		result, out, err := h(ctx, req, in)
		failed := err != nil || (result != nil && result.IsError)

		if span != nil {
			if failed {
				span.SetStatus(codes.Error, "tool call failed")
			}

			if sc := span.SpanContext(); sc.IsSampled() && result != nil {
				result.Content = append(result.Content, &mcpsdk.TextContent{Text: "trace_id=" + sc.TraceID().String()})
			}
		}

		if red != nil {
			status := observability.StatusOK
			if failed {
				status = observability.StatusError
			}

			red.RecordRequest(ctx, op, status, time.Since(start))
		}

		return result, out, err
	}
}

const (
	solveToolDescription = "Solve a melodic constraint problem. " +
		"Accepts a YAML or JSON problem document with a line in melodist notation, " +
		"an instrument or range, and constraints over note indexes. " +
		"Returns every solved variant in notation with a diff against the input."

	parseToolDescription = "Parse a line in melodist notation. " +
		"Returns the canonical text, each note's pitch, position and duration, and the harmonic contexts."

	instrumentsToolDescription = "List the instruments problems may name, with their ranges."
)
