package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/bqagent/core"
	"github.com/hupe1980/bqagent/datasource"
	"github.com/hupe1980/bqagent/logging"
)

// Result is the outcome of one tool execution.
type Result struct {
	CallID  string
	Tool    string
	Success bool
	Output  string // payload shown to the model on success
	Error   string // error text shown to the model on failure

	SQL      string           // statement run by test_query / final_query
	Rows     *datasource.Rows // rows returned by sample_data, test_query, final_query
	Duration time.Duration
}

// Terminal reports whether the result ends the run successfully.
func (r Result) Terminal() bool {
	return r.Tool == FinalQuery && r.Success
}

// Payload renders the tool turn content: {"result": ...} or {"error": ...}.
func (r Result) Payload() string {
	key, val := "result", r.Output
	if !r.Success {
		key, val = "error", r.Error
	}
	b, _ := json.Marshal(map[string]string{key: val})
	return string(b)
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// QueryTimeout bounds every data source call. Zero disables the timeout.
	QueryTimeout time.Duration

	// Logger receives the handler events (tool.list_sources, tool.sample_data, ...).
	Logger logging.Logger
}

// Executor runs tool operations against a data source. It is the explicit
// context every handler receives: the source handle, the target table and
// a logger.
type Executor struct {
	source datasource.Source
	target datasource.Target
	opts   ExecutorOptions
}

// NewExecutor creates an Executor for the given source and target.
func NewExecutor(source datasource.Source, target datasource.Target, optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{
		QueryTimeout: 60 * time.Second,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Executor{source: source, target: target, opts: opts}
}

// logger scopes the executor's logger to one invocation.
func (e *Executor) logger(tc *core.ToolContext) *logging.RunLogger {
	return logging.NewRunLogger(e.opts.Logger).
		WithComponent("executor").
		WithRun(tc.RunID()).
		WithContext("fc_id", tc.FunctionCallID())
}

// Target returns the configured target table.
func (e *Executor) Target() datasource.Target { return e.target }

func (e *Executor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.opts.QueryTimeout)
}

// ListSources lists the tables of the target dataset as a JSON array.
// Failures yield an empty list.
func (e *Executor) ListSources(tc *core.ToolContext, args ListSourcesArgs) Result {
	ctx, cancel := e.withTimeout(tc.Context())
	defer cancel()

	res := Result{Tool: ListSources, Success: true, Output: "[]"}

	names, err := e.source.ListTables(ctx, e.target.Dataset)
	if err != nil {
		e.logger(tc).Warn("tool.list_sources.failed", "dataset", e.target.Dataset, "error", err.Error())
		return res
	}

	if len(names) > 0 {
		b, _ := json.Marshal(names)
		res.Output = string(b)
	}

	e.logger(tc).Info("tool.list_sources", "dataset", e.target.Dataset, "count", len(names), "reasoning", args.Reasoning)

	return res
}

// DescribeSchema returns "name: TYPE" lines for a table. Failures yield an
// empty string.
func (e *Executor) DescribeSchema(tc *core.ToolContext, args DescribeSchemaArgs) Result {
	ctx, cancel := e.withTimeout(tc.Context())
	defer cancel()

	res := Result{Tool: DescribeSchema, Success: true}

	fields, err := e.source.GetSchema(ctx, args.TableName)
	if err != nil {
		e.logger(tc).Warn("tool.describe_schema.failed", "table", args.TableName, "error", err.Error())
		return res
	}

	res.Output = datasource.FormatSchema(fields)

	e.logger(tc).Info("tool.describe_schema", "table", args.TableName, "fields", len(fields), "reasoning", args.Reasoning)

	return res
}

// SampleQuery returns the bounded read sample_data runs for a table.
func (e *Executor) SampleQuery(table string, rowCount int) string {
	return fmt.Sprintf("SELECT * FROM `%s` LIMIT %d", e.target.Qualify(table), rowCount)
}

// SampleData reads a bounded number of rows. Failures yield an empty string.
func (e *Executor) SampleData(tc *core.ToolContext, args SampleDataArgs) Result {
	ctx, cancel := e.withTimeout(tc.Context())
	defer cancel()

	sql := e.SampleQuery(args.TableName, args.RowCount)
	res := Result{Tool: SampleData, Success: true, SQL: sql}

	rows, err := e.source.Query(ctx, sql)
	if err != nil {
		e.logger(tc).Warn("tool.sample_data.failed", "table", args.TableName, "error", err.Error())
		return res
	}

	res.Rows = rows
	res.Output = rows.String()

	e.logger(tc).Info("tool.sample_data",
		"table", e.target.Qualify(args.TableName),
		"rows", args.RowCount,
		"reasoning", args.Reasoning,
	)

	return res
}

// TestQuery runs a query whose rows are only shown to the model. Failures
// return the error text so the model can correct the statement.
func (e *Executor) TestQuery(tc *core.ToolContext, args TestQueryArgs) Result {
	res := e.runQuery(tc, TestQuery, args.SQL)

	e.logger(tc).Info("tool.test_query", "sql", args.SQL, "success", res.Success, "reasoning", args.Reasoning)

	return res
}

// FinalQuery runs the query whose rows are the run's output. Success ends the
// run; failure returns the error text and the run continues.
func (e *Executor) FinalQuery(tc *core.ToolContext, args FinalQueryArgs) Result {
	res := e.runQuery(tc, FinalQuery, args.SQL)

	if res.Success {
		e.logger(tc).Info("tool.final_query", "sql", args.SQL, "rows", res.Rows.Len(), "reasoning", args.Reasoning)
	} else {
		e.logger(tc).Warn("tool.final_query.failed", "sql", args.SQL, "error", res.Error)
	}

	return res
}

func (e *Executor) runQuery(tc *core.ToolContext, name, sql string) Result {
	ctx, cancel := e.withTimeout(tc.Context())
	defer cancel()

	res := Result{Tool: name, SQL: sql}

	rows, err := e.source.Query(ctx, sql)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.Success = true
	res.Rows = rows
	res.Output = rows.String()

	return res
}
