package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/bqagent/core"
	"github.com/hupe1980/bqagent/datasource"
	"github.com/hupe1980/bqagent/logging"
	"github.com/hupe1980/bqagent/model"
	"github.com/hupe1980/bqagent/tool"
)

// State is the state of a run.
type State string

// Run states. AwaitingToolResult is held between recording a tool call and
// recording its result.
const (
	StateRunning            State = "running"
	StateAwaitingToolResult State = "awaiting_tool_result"
	StateSucceeded          State = "succeeded"
	StateFailed             State = "failed"
)

// OutcomeKind tags the result of one iteration.
type OutcomeKind int

const (
	// OutcomeContinue asks for another iteration.
	OutcomeContinue OutcomeKind = iota
	// OutcomeTerminated ends the run successfully.
	OutcomeTerminated
	// OutcomeFailed ends the run with Err.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeContinue:
		return "continue"
	case OutcomeTerminated:
		return "terminated"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is returned by every iteration.
type Outcome struct {
	Kind   OutcomeKind
	Result tool.Result // result of the dispatched tool, if any
	Err    *RunError   // set for OutcomeFailed
}

// Result is the output of a successful run.
type Result struct {
	RunID      string
	State      State
	Output     string           // final rows rendered as text
	Rows       *datasource.Rows // final rows
	SQL        string           // the final query
	Iterations int
	Transcript *core.Transcript
}

// Options configures a Controller.
type Options struct {
	// MaxIterations is the budget of model requests per run.
	MaxIterations int

	// ModelTimeout bounds each model request. Zero disables the timeout.
	ModelTimeout time.Duration

	// Instruction renders the task prompt. Defaults to DefaultPrompt.
	Instruction Instruction

	// Dialect is named in the prompt ("BigQuery", "PostgreSQL").
	Dialect string

	Logger logging.Logger
}

// Controller drives the agent loop.
type Controller struct {
	catalog *tool.Catalog
	model   model.Model
	opts    Options
}

// NewController creates a Controller over a tool catalog and a model.
func NewController(catalog *tool.Catalog, m model.Model, optFns ...func(o *Options)) *Controller {
	opts := Options{
		MaxIterations: 10,
		ModelTimeout:  120 * time.Second,
		Instruction:   NewInstructionFromText(DefaultPrompt),
		Dialect:       "BigQuery",
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Controller{catalog: catalog, model: m, opts: opts}
}

// run holds the per-run state. It is discarded when Run returns.
type run struct {
	id         string
	state      State
	transcript *core.Transcript
	budget     *core.Budget
	logger     *logging.RunLogger
}

// Run executes the loop for one natural language request.
func (c *Controller) Run(ctx context.Context, request string) (*Result, error) {
	r := &run{
		id:     uuid.NewString(),
		state:  StateRunning,
		budget: core.NewBudget(c.opts.MaxIterations),
	}
	r.transcript = core.NewTranscript(r.id)
	r.logger = logging.NewRunLogger(c.opts.Logger).WithComponent("agent").WithRun(r.id)

	prompt, err := c.Prompt(request)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}
	r.transcript.Append(core.NewUserContent(prompt))

	info := c.model.Info()
	r.logger.Info("agent.run.start",
		"model", info.Name,
		"provider", info.Provider,
		"max_iterations", c.opts.MaxIterations,
	)

	for {
		out := c.step(ctx, r)

		switch out.Kind {
		case OutcomeContinue:
			continue
		case OutcomeTerminated:
			r.state = StateSucceeded
			r.logger.Info("agent.run.succeeded", "iterations", r.budget.Count(), "rows", out.Result.Rows.Len())
			return &Result{
				RunID:      r.id,
				State:      r.state,
				Output:     out.Result.Output,
				Rows:       out.Result.Rows,
				SQL:        out.Result.SQL,
				Iterations: r.budget.Count(),
				Transcript: r.transcript,
			}, nil
		default:
			r.state = StateFailed
			r.logger.Error("agent.run.failed", "iterations", r.budget.Count(), "error", out.Err.Error())
			return nil, out.Err
		}
	}
}

// Prompt renders the task prompt for request.
func (c *Controller) Prompt(request string) (string, error) {
	target := c.catalog.Target()

	return c.opts.Instruction.Resolve(PromptData{
		Dialect:       c.opts.Dialect,
		FullTablePath: target.FullPath(),
		TableName:     target.Table,
		UserRequest:   request,
		Tools:         c.catalog.Specs(),
	})
}

func (c *Controller) fail(r *run, cause error, err error) Outcome {
	return Outcome{
		Kind: OutcomeFailed,
		Err:  &RunError{Cause: cause, Iteration: r.budget.Count(), Err: err},
	}
}

// step performs one iteration.
func (c *Controller) step(ctx context.Context, r *run) Outcome {
	if r.budget.Exhausted() {
		return c.fail(r, ErrBudgetExhausted, nil)
	}
	if err := r.budget.Increment(); err != nil {
		return c.fail(r, ErrBudgetExhausted, err)
	}

	iteration := r.budget.Count()
	r.state = StateRunning
	r.logger.LogIteration(iteration, r.budget.Max())

	resp, err := c.generate(ctx, r)
	if err != nil {
		return c.fail(r, ErrModel, err)
	}

	calls := resp.Content.FunctionCalls()
	if len(calls) == 0 {
		var err error
		if text := resp.Content.Text(); text != "" {
			err = fmt.Errorf("model answered with text: %q", truncate(text, 200))
		}
		return c.fail(r, ErrNoToolCall, err)
	}
	if len(calls) > 1 {
		dropped := make([]string, 0, len(calls)-1)
		for _, fc := range calls[1:] {
			dropped = append(dropped, fc.Name)
		}
		r.logger.Warn("agent.tool_calls.dropped", "dispatched", calls[0].Name, "dropped", dropped)
	}

	fc := calls[0]
	if fc.ID == "" {
		fc.ID = "call_" + uuid.NewString()
	}

	r.transcript.Append(core.NewFunctionCallContent(fc))
	r.state = StateAwaitingToolResult
	r.logger.Info("agent.function.call", "function", fc.Name, "fc_id", fc.ID, "arguments", fc.Arguments)

	args, err := c.catalog.Validate(fc.Name, fc.Arguments)
	if err != nil {
		var unknown *tool.UnknownToolError
		if errors.As(err, &unknown) {
			return c.fail(r, ErrUnknownTool, err)
		}

		r.logger.Warn("tool.call.validation_failed", "tool", fc.Name, "fc_id", fc.ID, "error", err.Error())

		res := tool.Result{CallID: fc.ID, Tool: fc.Name, Error: err.Error()}
		c.record(r, fc, res)

		return Outcome{Kind: OutcomeContinue, Result: res}
	}

	r.logger.Debug("agent.function.reasoning", "function", fc.Name, "fc_id", fc.ID, "reasoning", args.Reasoning())

	toolCtx := core.NewToolContext(ctx, r.id, fc, iteration, r.logger.WithComponent("tool"))
	res := c.catalog.Dispatch(toolCtx, args)

	var toolErr error
	if !res.Success {
		toolErr = errors.New(res.Error)
	}
	r.logger.LogToolCall(fc.Name, res.Duration, res.Success, toolErr)

	c.record(r, fc, res)

	if res.Terminal() {
		return Outcome{Kind: OutcomeTerminated, Result: res}
	}

	return Outcome{Kind: OutcomeContinue, Result: res}
}

func (c *Controller) generate(ctx context.Context, r *run) (model.Response, error) {
	mctx := ctx
	if c.opts.ModelTimeout > 0 {
		var cancel context.CancelFunc
		mctx, cancel = context.WithTimeout(ctx, c.opts.ModelTimeout)
		defer cancel()
	}

	req := model.Request{
		Contents:   r.transcript.Contents(),
		Tools:      c.catalog.Definitions(),
		ToolChoice: model.ToolChoiceRequired,
	}

	start := time.Now()
	resp, err := model.Collect(mctx, c.model, req)

	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	r.logger.LogLLMCall(c.model.Info().Name, tokens, time.Since(start), err == nil, err)

	return resp, err
}

// record appends the tool turn for res and returns the run to running.
func (c *Controller) record(r *run, fc core.FunctionCall, res tool.Result) {
	r.transcript.Append(core.NewFunctionResponseContent(core.FunctionResponse{
		ID:       fc.ID,
		Name:     fc.Name,
		Response: res.Payload(),
		Error:    res.Error,
	}))
	r.state = StateRunning
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
