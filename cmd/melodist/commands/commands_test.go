package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/Sumatoshi-tech/melodist/pkg/lineparse"
	"github.com/Sumatoshi-tech/melodist/pkg/problem"
)

const stepProblem = `
name: steps
line: "<C-Major: I> C:5 D E F G A"
range: "C:3..C:7"
tempo: 120
constraints:
  - type: step_sequence
    notes: [0, 1, 2, 3, 4, 5]
    deltas: [1, 1, 1, -1, -1]
  - type: fixed
    notes: [2]
    pitch: "E:5"
`

const solvedLine = "<C-Major: I> qC:5 D E F E D"

func writeProblem(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "steps.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()

	var out, errOut bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), errOut.String(), err
}

// TestSolveCommand_Text verifies text output lists one solved line per variant.
func TestSolveCommand_Text(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, NewSolveCommand(&Globals{Quiet: true}), writeProblem(t, stepProblem), "--format", "text")
	require.NoError(t, err)
	assert.Equal(t, solvedLine+"\n", out)
}

// TestSolveCommand_JSON verifies the report encodes as JSON.
func TestSolveCommand_JSON(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, NewSolveCommand(&Globals{Quiet: true}), writeProblem(t, stepProblem), "-f", "json")
	require.NoError(t, err)

	var rep problem.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, "steps", rep.Name)
	assert.Equal(t, 1, rep.Solutions)
	require.Len(t, rep.Variants, 1)
	assert.Equal(t, solvedLine, rep.Variants[0].Text)
}

// TestSolveCommand_Table verifies the table and diff columns.
func TestSolveCommand_Table(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, NewSolveCommand(&Globals{Quiet: true}), writeProblem(t, stepProblem), "--diff")
	require.NoError(t, err)

	assert.Contains(t, out, "steps: 1 solutions over 1 beat records")
	assert.Contains(t, out, "1st")
	assert.Contains(t, out, "+E")
	assert.Contains(t, out, "-G")
	assert.Contains(t, out, "Total: 1 variants")
}

// TestSolveCommand_Outputs verifies MIDI and plot files are written.
func TestSolveCommand_Outputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	plot := filepath.Join(dir, "roll.html")

	_, log, err := execute(t, NewSolveCommand(&Globals{Quiet: true}),
		writeProblem(t, stepProblem), "--midi", filepath.Join(dir, "midi"), "--plot", plot, "-f", "text")
	require.NoError(t, err)
	assert.Contains(t, log, "steps-001.mid")

	f, err := os.Open(filepath.Join(dir, "midi", "steps-001.mid"))
	require.NoError(t, err)

	defer f.Close()

	s, err := smf.ReadFrom(f)
	require.NoError(t, err)
	require.Len(t, s.Tracks, 1)

	html, err := os.ReadFile(plot)
	require.NoError(t, err)
	assert.Contains(t, string(html), "variant 0")
}

// TestSolveCommand_Errors verifies bad flags and documents are reported.
func TestSolveCommand_Errors(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, NewSolveCommand(&Globals{Quiet: true}), writeProblem(t, stepProblem), "-f", "xml")
	require.ErrorIs(t, err, ErrUnknownFormat)

	_, _, err = execute(t, NewSolveCommand(&Globals{Quiet: true}), writeProblem(t, `{"line": "C"}`))
	require.ErrorIs(t, err, problem.ErrSchema)

	_, _, err = execute(t, NewSolveCommand(&Globals{Quiet: true}))
	require.Error(t, err)
}

// TestParseCommand verifies argument and stdin input with table and JSON output.
func TestParseCommand(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, NewParseCommand(), "<C-Major: I> C:4 D hE")
	require.NoError(t, err)
	assert.Contains(t, out, "<C-Major: I> qC:4 D hE")
	assert.Contains(t, out, "C-Major")
	assert.Contains(t, out, "E:4")

	cmd := NewParseCommand()
	cmd.SetIn(strings.NewReader("C D\n"))
	cmd.SetArgs([]string{"--json"})

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `"text": "qC:4 D"`)
}

// TestParseCommand_SyntaxError verifies the error position is marked.
func TestParseCommand_SyntaxError(t *testing.T) {
	t.Parallel()

	_, errOut, err := execute(t, NewParseCommand(), "C D-")

	var perr *lineparse.Error
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, errOut, "C D-\n   ^")
}

// TestMCPCommand_Exists verifies the command is wired.
func TestMCPCommand_Exists(t *testing.T) {
	t.Parallel()

	cmd := NewMCPCommand(&Globals{})
	require.NotNil(t, cmd)
	assert.Equal(t, "mcp", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
}

// TestSetup_Instruments verifies extra instruments merge into the catalog.
func TestSetup_Instruments(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "instruments.yaml")
	require.NoError(t, os.WriteFile(path, []byte("instruments:\n  - {name: Kazoo, family: toys, low: \"C:4\", high: \"C:5\"}\n"), 0o600))

	rt, err := (&Globals{InstrumentsPath: path, Quiet: true}).setup("cli")
	require.NoError(t, err)

	defer rt.shutdown()

	in, err := rt.catalog.Get("kazoo")
	require.NoError(t, err)
	assert.Equal(t, "toys", in.Family)

	_, err = rt.catalog.Get("Violin")
	require.NoError(t, err)
	assert.Len(t, rt.solverDefaults(), 5)
	assert.Len(t, rt.midiOptions(), 3)

	_, err = (&Globals{InstrumentsPath: filepath.Join(t.TempDir(), "none.yaml")}).setup("cli")
	require.Error(t, err)
}
