package tool

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hupe1980/bqagent/core"
	"github.com/hupe1980/bqagent/datasource"
	"github.com/hupe1980/bqagent/model"
)

// CatalogOptions configures NewCatalog.
type CatalogOptions struct {
	// MaxSampleRows bounds row_count of sample_data.
	MaxSampleRows int
}

// Catalog is the fixed set of tools offered to the model, together with the
// dispatch table mapping each tool name to its implementation.
type Catalog struct {
	tools    []*FunctionTool
	dispatch map[string]*FunctionTool
	defaults Defaults
	target   datasource.Target
}

// NewCatalog builds the five data tools on top of exec.
func NewCatalog(exec *Executor, optFns ...func(o *CatalogOptions)) *Catalog {
	opts := CatalogOptions{
		MaxSampleRows: DefaultMaxSampleRows,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxSampleRows < 1 {
		opts.MaxSampleRows = DefaultMaxSampleRows
	}

	target := exec.Target()
	fullPath := target.FullPath()

	listSources := NewFunctionTool(ListSources,
		"Returns the list of available tables in the dataset",
		exec.ListSources,
	)

	describeSchema := NewFunctionTool(DescribeSchema,
		fmt.Sprintf("Returns schema info (column name and type) for the specified table (defaults to '%s')", target.Table),
		exec.DescribeSchema,
	)
	describeSchema.setDefault("table_name", target.Table)

	sampleData := NewFunctionTool(SampleData,
		fmt.Sprintf("Returns sample rows from the specified table (defaults to '%s')", target.Table),
		exec.SampleData,
	)
	sampleData.setDefault("table_name", target.Table)
	sampleData.setBound("row_count", "maximum", opts.MaxSampleRows)

	testQuery := NewFunctionTool(TestQuery,
		fmt.Sprintf("Tests a SQL query and returns results (only visible to the agent). Always use the complete table path `%s`.", fullPath),
		exec.TestQuery,
	)

	finalQuery := NewFunctionTool(FinalQuery,
		fmt.Sprintf("Runs the final validated SQL query and shows the results to the user. Always use the complete table path `%s`.", fullPath),
		exec.FinalQuery,
	)

	c := &Catalog{
		tools:    []*FunctionTool{listSources, describeSchema, sampleData, testQuery, finalQuery},
		dispatch: make(map[string]*FunctionTool, 5),
		defaults: Defaults{TableName: target.Table, MaxSampleRows: opts.MaxSampleRows},
		target:   target,
	}
	for _, t := range c.tools {
		c.dispatch[t.Name()] = t
	}

	return c
}

// Tools returns the tools in catalog order.
func (c *Catalog) Tools() []Tool {
	out := make([]Tool, len(c.tools))
	for i, t := range c.tools {
		out[i] = t
	}
	return out
}

// Specs returns the specs of all tools in catalog order.
func (c *Catalog) Specs() []Spec {
	out := make([]Spec, len(c.tools))
	for i, t := range c.tools {
		out[i] = t.Spec()
	}
	return out
}

// Definitions renders the catalog as model tool definitions.
func (c *Catalog) Definitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(c.tools))
	for _, t := range c.tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// Target returns the table the catalog's tools default to.
func (c *Catalog) Target() datasource.Target { return c.target }

// Validate turns a raw invocation into typed Arguments. It returns an
// *UnknownToolError for names outside the catalog and a *ValidationError for
// malformed payloads.
func (c *Catalog) Validate(name, raw string) (Arguments, error) {
	t, ok := c.dispatch[name]
	if !ok {
		return Arguments{}, &UnknownToolError{Name: name}
	}
	return t.Decode(raw, c.defaults)
}

// Dispatch executes validated arguments. Panics inside a tool are recovered
// and reported as a failed Result.
func (c *Catalog) Dispatch(toolCtx *core.ToolContext, args Arguments) (res Result) {
	start := time.Now()

	t, ok := c.dispatch[args.Tool]
	if !ok {
		return Result{
			CallID: toolCtx.FunctionCallID(),
			Tool:   args.Tool,
			Error:  (&UnknownToolError{Name: args.Tool}).Error(),
		}
	}

	toolCtx.LogDebug("tool.call.start", "tool", args.Tool, "fc_id", toolCtx.FunctionCallID())

	defer func() {
		if r := recover(); r != nil {
			toolCtx.LogError("tool.call.panic", "tool", args.Tool, "recover", fmt.Sprint(r), "stack", string(debug.Stack()))
			res = Result{
				Tool:  args.Tool,
				Error: NewToolError(args.Tool, fmt.Sprintf("panic recovered: %v", r), CodePanic).Error(),
			}
		}
		res.CallID = toolCtx.FunctionCallID()
		res.Tool = args.Tool
		res.Duration = time.Since(start)

		toolCtx.LogInfo("tool.call.executed",
			"tool", args.Tool,
			"fc_id", res.CallID,
			"duration_ms", res.Duration.Milliseconds(),
			"success", res.Success,
		)
	}()

	return t.Call(toolCtx, args)
}
