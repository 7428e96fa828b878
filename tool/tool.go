// Package tool implements the catalog of data exploration tools the model may
// call, the validation of their arguments and their execution against a
// datasource.Source.
package tool

import (
	"fmt"

	"github.com/hupe1980/bqagent/core"
)

// Tool names exposed to the model.
const (
	ListSources    = "list_sources"
	DescribeSchema = "describe_schema"
	SampleData     = "sample_data"
	TestQuery      = "test_query"
	FinalQuery     = "final_query"
)

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodePanic      = "PANIC"
)

// Tool is a named, schema described operation the model may invoke.
type Tool interface {
	// Name returns the unique snake_case identifier for this tool.
	Name() string

	// Description returns the text shown to the model.
	Description() string

	// Parameters returns the JSON schema of the accepted arguments.
	Parameters() map[string]any

	// Spec returns the ordered parameter description of the tool.
	Spec() Spec

	// Call executes the tool with already validated arguments. Failures are
	// reported in the Result, never as a Go error.
	Call(toolCtx *core.ToolContext, args Arguments) Result
}

// ValidationError reports arguments that do not match a tool's schema.
// It is recoverable: the loop hands the message back to the model.
type ValidationError struct {
	Tool    string `json:"tool"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Message)
	}
	return fmt.Sprintf("invalid arguments for %s: %s: %s", e.Tool, e.Field, e.Message)
}

// UnknownToolError reports a call naming a tool absent from the catalog.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %q", e.Name)
}

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`    // Name of the tool that failed
	Message string `json:"message"` // Error message
	Code    string `json:"code"`    // Error code for categorization
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
