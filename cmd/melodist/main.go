// Package main provides the entry point for the melodist CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/melodist/cmd/melodist/commands"
	"github.com/Sumatoshi-tech/melodist/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	err := newRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var g commands.Globals

	rootCmd := &cobra.Command{
		Use:   "melodist",
		Short: "Melodist - melodic constraint solving",
		Long: `Melodist reshapes melodies under pitch and beat constraints.

Commands:
  solve     Solve problem documents
  parse     Parse a line in melodist notation
  serve     Serve the solver over HTTP
  mcp       Serve the solver to AI agents over MCP`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&g.ConfigPath, "config", "c", "", "config file (default: melodist.yaml in ., ./config, /etc/melodist)")
	rootCmd.PersistentFlags().StringVar(&g.InstrumentsPath, "instruments", "", "YAML file of extra instruments")
	rootCmd.PersistentFlags().BoolVarP(&g.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&g.Quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(commands.NewSolveCommand(&g))
	rootCmd.AddCommand(commands.NewParseCommand())
	rootCmd.AddCommand(commands.NewServeCommand(&g))
	rootCmd.AddCommand(commands.NewMCPCommand(&g))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "melodist %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
