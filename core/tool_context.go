package core

import (
	"context"
	"fmt"

	"github.com/hupe1980/bqagent/logging"
)

// ToolContext provides the scoped surface a tool handler sees for one
// invocation: the call's context for cancellation, its correlation id, the
// loop iteration that produced it and a logger.
type ToolContext struct {
	ctx            context.Context
	runID          string
	functionCallID string
	toolName       string
	iteration      int

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to one function call.
func NewToolContext(ctx context.Context, runID string, fc FunctionCall, iteration int, logger logging.Logger) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ToolContext{
		ctx:            ctx,
		runID:          runID,
		functionCallID: fc.ID,
		toolName:       fc.Name,
		iteration:      iteration,
		loggerAdapter:  newLoggerAdapter(logger),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// RunID returns the id of the run the invocation belongs to.
func (tc *ToolContext) RunID() string { return tc.runID }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// ToolName returns the invoked tool name.
func (tc *ToolContext) ToolName() string { return tc.toolName }

// Iteration returns the loop iteration (1-based) that issued the call.
func (tc *ToolContext) Iteration() int { return tc.iteration }

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.functionCallID == "" || tc.toolName == "" {
		return fmt.Errorf("invalid ToolContext")
	}

	return nil
}
