package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/melodist/pkg/observability"
	"github.com/Sumatoshi-tech/melodist/pkg/problem"
	"github.com/Sumatoshi-tech/melodist/pkg/render"
	"github.com/Sumatoshi-tech/melodist/pkg/solver/melodic"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatText  = "text"

	outputDirPerm = 0o750
)

// ErrUnknownFormat is returned for an unsupported --format value.
var ErrUnknownFormat = errors.New("unknown output format")

type solveFlags struct {
	format        string
	diff          bool
	midiDir       string
	plotPath      string
	instanceLimit int
	partials      bool
}

// NewSolveCommand creates the solve subcommand.
func NewSolveCommand(g *Globals) *cobra.Command {
	var flags solveFlags

	cmd := &cobra.Command{
		Use:   "solve <problem.yaml>...",
		Short: "Solve melodic constraint problems",
		Long: `Solve one or more problem documents (YAML or JSON).

Each document names a line in melodist notation, an instrument or range and
constraints over note indexes. Every solved variant is printed; --diff shows
the token edits against the input line, --midi writes one MIDI file per
variant and --plot writes a piano-roll chart of all variants.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch flags.format {
			case formatTable, formatJSON, formatText:
			default:
				return fmt.Errorf("%w: %q", ErrUnknownFormat, flags.format)
			}

			rt, err := g.setup(observability.ModeCLI)
			if err != nil {
				return err
			}
			defer rt.shutdown()

			for _, path := range args {
				if err := runSolve(cmd, rt, &flags, path); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", formatTable, "output format: table, json or text")
	cmd.Flags().BoolVar(&flags.diff, "diff", false, "show token diffs against the input line")
	cmd.Flags().StringVar(&flags.midiDir, "midi", "", "directory to write one MIDI file per variant")
	cmd.Flags().StringVar(&flags.plotPath, "plot", "", "HTML file to write a piano-roll chart to")
	cmd.Flags().IntVar(&flags.instanceLimit, "limit", 0, "maximum pitch solutions per beat record (0: from config)")
	cmd.Flags().BoolVar(&flags.partials, "partials", false, "also report assignments the search could not complete")

	return cmd
}

func runSolve(cmd *cobra.Command, rt *runtime, flags *solveFlags, path string) error {
	doc, err := problem.DecodeFile(path)
	if err != nil {
		return err
	}

	p, err := doc.Build(rt.catalog)
	if err != nil {
		return err
	}

	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	opts := rt.solverDefaults()

	if flags.instanceLimit > 0 {
		opts = append(opts, melodic.WithInstanceLimit(flags.instanceLimit))
	}

	if flags.partials {
		opts = append(opts, melodic.WithAcceptPartials(true))
	}

	ctx, cancel := rt.solveContext(observability.WithProblem(cmd.Context(), p.Name))
	defer cancel()

	started := time.Now()

	rep, err := p.Solve(ctx, opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	switch flags.format {
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)

		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	case formatText:
		for _, v := range rep.Variants {
			fmt.Fprintln(out, v.Text)
		}
	default:
		printReport(out, rep, flags.diff, time.Since(started))
	}

	if flags.midiDir != "" {
		if err := writeMIDIFiles(cmd.ErrOrStderr(), rt, p, rep, flags.midiDir); err != nil {
			return err
		}
	}

	if flags.plotPath != "" {
		if err := writePlotFile(cmd.ErrOrStderr(), rep, flags.plotPath); err != nil {
			return err
		}
	}

	return nil
}

func printReport(out io.Writer, rep *problem.Report, diff bool, elapsed time.Duration) {
	header := color.New(color.FgCyan, color.Bold)
	if rep.Solutions == 0 {
		header = color.New(color.FgYellow, color.Bold)
	}

	header.Fprintf(out, "%s: %s solutions over %s beat records in %s\n",
		rep.Name, humanize.Comma(int64(rep.Solutions)), humanize.Comma(int64(rep.BeatResults)),
		elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "input: %s\n", rep.Original)

	if len(rep.Variants) == 0 {
		return
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(out)
	tbl.SetStyle(table.StyleLight)

	if diff {
		tbl.AppendHeader(table.Row{"#", "Beat", "Diff", "+", "-"})
	} else {
		tbl.AppendHeader(table.Row{"#", "Beat", "Line"})
	}

	for i, v := range rep.Variants {
		label := humanize.Ordinal(i + 1)
		if v.Partial {
			label += " (partial)"
		}

		if diff {
			tbl.AppendRow(table.Row{label, v.Beat, colorDiff(render.Diff(rep.Original, v.Text)), v.Inserted, v.Deleted})
		} else {
			tbl.AppendRow(table.Row{label, v.Beat, v.Text})
		}
	}

	tbl.AppendFooter(table.Row{"", "", fmt.Sprintf("Total: %s variants", humanize.Comma(int64(len(rep.Variants))))})
	tbl.Render()
}

var (
	insertColor = color.New(color.FgGreen)
	deleteColor = color.New(color.FgRed)
)

func colorDiff(edits []render.Edit) string {
	var parts []string

	for _, e := range edits {
		for _, tok := range e.Tokens {
			switch e.Op {
			case render.Insert:
				parts = append(parts, insertColor.Sprint("+"+tok))
			case render.Delete:
				parts = append(parts, deleteColor.Sprint("-"+tok))
			default:
				parts = append(parts, tok)
			}
		}
	}

	return strings.Join(parts, " ")
}

func writeMIDIFiles(log io.Writer, rt *runtime, p *problem.Problem, rep *problem.Report, dir string) error {
	if err := os.MkdirAll(dir, outputDirPerm); err != nil {
		return fmt.Errorf("create midi dir: %w", err)
	}

	opts := append(rt.midiOptions(),
		render.WithProgram(p.Score.Instrument.Program),
		render.WithTrackName(p.Score.Instrument.Name),
	)

	if p.Score.Tempo != nil {
		opts = append(opts, render.WithTempo(p.Score.Tempo))
	}

	if p.Score.TS != nil {
		opts = append(opts, render.WithTimeSignatures(p.Score.TS))
	}

	for i, v := range rep.Variants {
		path := filepath.Join(dir, fmt.Sprintf("%s-%03d.mid", rep.Name, i+1))

		size, err := writeFile(path, func(w io.Writer) error {
			return render.WriteMIDI(w, v.Line(), opts...)
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(log, "wrote %s (%s)\n", path, humanize.Bytes(uint64(size))) //nolint:gosec // size is non-negative.
	}

	return nil
}

func writePlotFile(log io.Writer, rep *problem.Report, path string) error {
	size, err := writeFile(path, func(w io.Writer) error {
		return render.WritePlot(w, rep.Name, rep.Lines()...)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(log, "wrote %s (%s)\n", path, humanize.Bytes(uint64(size))) //nolint:gosec // size is non-negative.

	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)

	return n, err
}

func writeFile(path string, write func(io.Writer) error) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}

	cw := &countingWriter{w: f}

	writeErr := write(cw)
	closeErr := f.Close()

	if err := errors.Join(writeErr, closeErr); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}

	return cw.n, nil
}
