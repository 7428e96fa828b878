package agent

import (
	"errors"
	"fmt"
)

// Fatal causes of a failed run.
var (
	ErrBudgetExhausted = errors.New("budget exhausted")
	ErrNoToolCall      = errors.New("no tool call, should never happen")
	ErrUnknownTool     = errors.New("unknown tool")
	ErrModel           = errors.New("model request failed")
)

// RunError reports why a run failed. Cause is one of the sentinel errors of
// this package; Err carries the underlying detail when there is one.
type RunError struct {
	Cause     error
	Iteration int
	Err       error
}

func (e *RunError) Error() string {
	if errors.Is(e.Cause, ErrBudgetExhausted) {
		return fmt.Sprintf("%v after %d iterations", e.Cause, e.Iteration)
	}
	if e.Err != nil {
		return fmt.Sprintf("%v at iteration %d: %v", e.Cause, e.Iteration, e.Err)
	}
	return fmt.Sprintf("%v at iteration %d", e.Cause, e.Iteration)
}

// Unwrap exposes both the cause and the underlying error to errors.Is/As.
func (e *RunError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Cause}
	}
	return []error{e.Cause, e.Err}
}
