package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool name constants.
const (
	ToolNameSolve       = "melodist_solve"
	ToolNameParse       = "melodist_parse"
	ToolNameInstruments = "melodist_instruments"
)

// MaxInputBytes is the maximum allowed size for inline problem or line input (1 MB).
const MaxInputBytes = 1 << 20

// Sentinel errors for tool input validation.
var (
	// ErrEmptyProblem indicates the problem parameter is empty.
	ErrEmptyProblem = errors.New("problem parameter is required and must not be empty")
	// ErrEmptyLine indicates the line parameter is empty.
	ErrEmptyLine = errors.New("line parameter is required and must not be empty")
	// ErrInputTooLarge indicates an input exceeds the size limit.
	ErrInputTooLarge = errors.New("input exceeds maximum size")
)

// SolveInput is the input schema for the melodist_solve tool.
type SolveInput struct {
	Problem        string `json:"problem"                   jsonschema:"problem document in YAML or JSON"`
	InstanceLimit  int    `json:"instance_limit,omitempty"  jsonschema:"maximum pitch solutions per beat record (default: from config)"`
	AcceptPartials bool   `json:"accept_partials,omitempty" jsonschema:"also report assignments the search could not complete"`
}

// ParseInput is the input schema for the melodist_parse tool.
type ParseInput struct {
	Line string `json:"line" jsonschema:"line in melodist notation, e.g. <C-Major: I> qC:4 D E"`
}

// InstrumentsInput is the input schema for the melodist_instruments tool.
type InstrumentsInput struct {
	Family string `json:"family,omitempty" jsonschema:"optional family filter (e.g. strings woodwinds voice)"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

func validateText(text string, empty error) error {
	if text == "" {
		return empty
	}

	if len(text) > MaxInputBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, len(text), MaxInputBytes)
	}

	return nil
}
