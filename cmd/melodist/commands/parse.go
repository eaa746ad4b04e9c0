package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/melodist/pkg/lineparse"
	"github.com/Sumatoshi-tech/melodist/pkg/render"
)

// NewParseCommand creates the parse subcommand.
func NewParseCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "parse [line]",
		Short: "Parse a line in melodist notation",
		Long: `Parse a line in melodist notation and print its notes and harmonic contexts.

The line is read from the argument or, when absent, from standard input.
Syntax errors are reported with the offending position.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := lineSource(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			parsed, err := lineparse.Parse(src)
			if err != nil {
				printSyntaxError(cmd.ErrOrStderr(), src, err)

				return err
			}

			summary, err := render.Summarize(parsed.Line, parsed.Track)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)

				return enc.Encode(summary)
			}

			printSummary(cmd.OutOrStdout(), summary)

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the parse as JSON")

	return cmd
}

func lineSource(in io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read line: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

func printSyntaxError(out io.Writer, src string, err error) {
	var perr *lineparse.Error
	if !errors.As(err, &perr) {
		return
	}

	color.New(color.FgRed).Fprintf(out, "%s\n%s^\n", src, strings.Repeat(" ", perr.Pos))
}

func printSummary(out io.Writer, s *render.Summary) {
	color.New(color.FgCyan, color.Bold).Fprintf(out, "%s\n", s.Text)

	notes := table.NewWriter()
	notes.SetOutputMirror(out)
	notes.SetStyle(table.StyleLight)
	notes.AppendHeader(table.Row{"#", "Pitch", "Position", "Duration", "Tie"})

	for _, n := range s.Notes {
		tie := ""
		if n.Tied {
			tie = "-"
		}

		notes.AppendRow(table.Row{n.Index, n.Pitch, n.Position, n.Duration, tie})
	}

	notes.AppendFooter(table.Row{"", "", "Total", s.Duration, ""})
	notes.Render()

	if len(s.Contexts) == 0 {
		return
	}

	contexts := table.NewWriter()
	contexts.SetOutputMirror(out)
	contexts.SetStyle(table.StyleLight)
	contexts.AppendHeader(table.Row{"Position", "Duration", "Tonality", "Chord"})

	for _, c := range s.Contexts {
		contexts.AppendRow(table.Row{c.Position, c.Duration, c.Tonality, c.Chord})
	}

	contexts.Render()
}
