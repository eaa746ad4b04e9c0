package mcp_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/melodist/pkg/mcp"
	"github.com/Sumatoshi-tech/melodist/pkg/problem"
)

const stepProblem = `
name: steps
line: "<C-Major: I> C:5 D E F G A"
range: "C:3..C:7"
constraints:
  - type: step_sequence
    notes: [0, 1, 2, 3, 4, 5]
    deltas: [1, 1, 1, -1, -1]
  - type: fixed
    notes: [2]
    pitch: "E:5"
`

func connect(t *testing.T, srv *mcp.Server) *mcpsdk.ClientSession {
	t.Helper()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return session
}

func text(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()

	require.NotEmpty(t, result.Content)

	tc, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)

	return tc.Text
}

func TestMCPServer_InMemoryTransport_ToolsList(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	toolsResult, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	toolNames := make([]string, 0, len(toolsResult.Tools))
	for _, tool := range toolsResult.Tools {
		toolNames = append(toolNames, tool.Name)
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
	}

	assert.ElementsMatch(t, []string{"melodist_solve", "melodist_parse", "melodist_instruments"}, toolNames)
}

func TestMCPServer_InMemoryTransport_CallSolve(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{SolveTimeout: 5 * time.Second}))

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameSolve,
		Arguments: map[string]any{"problem": stepProblem},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, text(t, result))

	var rep problem.Report
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &rep))

	assert.Equal(t, 1, rep.Solutions)
	require.Len(t, rep.Variants, 1)
	assert.Equal(t, "<C-Major: I> qC:5 D E F E D", rep.Variants[0].Text)
}

func TestMCPServer_InMemoryTransport_CallSolve_Errors(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	tests := []struct {
		name    string
		problem string
		want    string
	}{
		{name: "empty", problem: "", want: "problem parameter is required"},
		{name: "schema", problem: `{"line": "C"}`, want: "does not match schema"},
		{name: "instrument", problem: `{"line": "C", "instrument": "Kazoo", "constraints": []}`, want: "unknown instrument"},
	}

	for _, tt := range tests {
		result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
			Name:      mcp.ToolNameSolve,
			Arguments: map[string]any{"problem": tt.problem},
		})
		require.NoError(t, err, tt.name)
		assert.True(t, result.IsError, tt.name)
		assert.Contains(t, text(t, result), tt.want, tt.name)
	}
}

func TestMCPServer_InMemoryTransport_CallParse(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameParse,
		Arguments: map[string]any{"line": "<C-Major: I> C:4 D hE"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, text(t, result))

	var summary struct {
		Text     string `json:"text"`
		Duration string `json:"duration"`
		Notes    []struct {
			Pitch string `json:"pitch"`
		} `json:"notes"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &summary))

	assert.Equal(t, "<C-Major: I> qC:4 D hE", summary.Text)
	assert.Equal(t, "1", summary.Duration)
	require.Len(t, summary.Notes, 3)
	assert.Equal(t, "E:4", summary.Notes[2].Pitch)

	result, err = session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameParse,
		Arguments: map[string]any{"line": "C [D"},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestMCPServer_InMemoryTransport_CallInstruments(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameInstruments,
		Arguments: map[string]any{"family": "voice"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var infos []mcp.InstrumentInfo
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &infos))

	require.Len(t, infos, 4)
	assert.Equal(t, mcp.InstrumentInfo{Name: "Soprano", Family: "voice", Range: "C:4..A:5"}, infos[0])
}
