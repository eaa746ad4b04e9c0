package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/melodist/pkg/mcp"
	"github.com/Sumatoshi-tech/melodist/pkg/observability"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes melodist as tools that AI agents can discover and invoke:
  - melodist_solve: solve a problem document and return every variant
  - melodist_parse: parse a line in melodist notation
  - melodist_instruments: list the instrument catalog

Logs are written to stderr as JSON.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := g.setup(observability.ModeMCP)
			if err != nil {
				return err
			}
			defer rt.shutdown()

			red, err := observability.NewREDMetrics(rt.providers.Meter)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:         rt.providers.Logger,
				Metrics:        red,
				Tracer:         rt.providers.Tracer,
				Catalog:        rt.catalog,
				SolverDefaults: rt.solverDefaults(),
				SolveTimeout:   rt.cfg.Solver.Timeout,
			})

			return srv.Run(cmd.Context())
		},
	}

	return cmd
}
