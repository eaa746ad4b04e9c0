package mcp

import (
	"context"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/melodist/pkg/lineparse"
	"github.com/Sumatoshi-tech/melodist/pkg/observability"
	"github.com/Sumatoshi-tech/melodist/pkg/problem"
	"github.com/Sumatoshi-tech/melodist/pkg/render"
	"github.com/Sumatoshi-tech/melodist/pkg/solver/melodic"
)

// InstrumentInfo is one entry of the melodist_instruments result.
type InstrumentInfo struct {
	Name      string `json:"name"`
	Family    string `json:"family"`
	Range     string `json:"range"`
	Transpose int    `json:"transpose,omitempty"`
}

func (s *Server) handleSolve(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input SolveInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validateText(input.Problem, ErrEmptyProblem); err != nil {
		return errorResult(err)
	}

	doc, err := problem.Decode(strings.NewReader(input.Problem))
	if err != nil {
		return errorResult(err)
	}

	p, err := doc.Build(s.catalog)
	if err != nil {
		return errorResult(err)
	}

	opts := append([]melodic.Option{melodic.WithLogger(s.logger), melodic.WithTracer(s.tracer)}, s.defaults...)

	if input.InstanceLimit > 0 {
		opts = append(opts, melodic.WithInstanceLimit(input.InstanceLimit))
	}

	if input.AcceptPartials {
		opts = append(opts, melodic.WithAcceptPartials(true))
	}

	ctx = observability.WithProblem(ctx, p.Name)

	if s.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rep, err := p.Solve(ctx, opts...)
	if err != nil {
		return errorResult(fmt.Errorf("solve: %w", err))
	}

	s.logger.InfoContext(ctx, "mcp solve done", "variants", len(rep.Variants))

	return jsonResult(rep)
}

func (s *Server) handleParse(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input ParseInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validateText(input.Line, ErrEmptyLine); err != nil {
		return errorResult(err)
	}

	parsed, err := lineparse.Parse(input.Line)
	if err != nil {
		return errorResult(err)
	}

	summary, err := render.Summarize(parsed.Line, parsed.Track)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(summary)
}

func (s *Server) handleInstruments(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input InstrumentsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	infos := make([]InstrumentInfo, 0)

	for _, name := range s.catalog.Names() {
		in, err := s.catalog.Get(name)
		if err != nil {
			return errorResult(err)
		}

		if input.Family != "" && !strings.EqualFold(in.Family, input.Family) {
			continue
		}

		infos = append(infos, InstrumentInfo{
			Name:      in.Name,
			Family:    in.Family,
			Range:     in.Range.String(),
			Transpose: in.Transpose,
		})
	}

	return jsonResult(infos)
}
