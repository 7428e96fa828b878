package tool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bqagent/core"
	"github.com/hupe1980/bqagent/datasource"
	"github.com/hupe1980/bqagent/internal/testutil"
	"github.com/hupe1980/bqagent/logging"
)

var target = datasource.Target{Project: "proj", Dataset: "ds", Table: "orders"}

var orderFields = []datasource.Field{
	{Name: "id", Type: "INTEGER"},
	{Name: "status", Type: "STRING"},
}

func newFixture(t *testing.T) (*Catalog, *testutil.FakeSource) {
	t.Helper()

	src := testutil.NewFakeSource(target).
		Table("orders", orderFields,
			[]any{int64(1), "paid"},
			[]any{int64(2), "open"},
			[]any{int64(3), "paid"},
		).
		Table("users", []datasource.Field{{Name: "id", Type: "INTEGER"}})

	exec := NewExecutor(src, target)
	return NewCatalog(exec), src
}

func toolCtx(name string) *core.ToolContext {
	return core.NewToolContext(context.Background(), "run-1", core.FunctionCall{ID: "call-1", Name: name}, 1, nil)
}

func run(t *testing.T, c *Catalog, name, raw string) Result {
	t.Helper()
	args, err := c.Validate(name, raw)
	require.NoError(t, err)
	return c.Dispatch(toolCtx(name), args)
}

func TestCatalog_Definitions(t *testing.T) {
	c, _ := newFixture(t)

	defs := c.Definitions()
	require.Len(t, defs, 5)

	names := make([]string, 0, len(defs))
	for _, d := range defs {
		assert.Equal(t, "function", d.Type)
		assert.Equal(t, false, d.Function.Parameters["additionalProperties"])
		assert.Contains(t, d.Function.Parameters["required"], "reasoning")
		names = append(names, d.Function.Name)
	}
	assert.Equal(t, []string{ListSources, DescribeSchema, SampleData, TestQuery, FinalQuery}, names)

	sample := defs[2].Function.Parameters
	assert.ElementsMatch(t, []string{"reasoning", "row_count"}, sample["required"])
	props := sample["properties"].(map[string]any)
	assert.Equal(t, DefaultMaxSampleRows, props["row_count"].(map[string]any)["maximum"])
	assert.Contains(t, props["table_name"].(map[string]any)["description"], "defaults to 'orders'")

	assert.Contains(t, defs[4].Function.Description, "`proj.ds.orders`")
}

func TestCatalog_Specs(t *testing.T) {
	c, _ := newFixture(t)

	specs := c.Specs()
	require.Len(t, specs, 5)

	sample := specs[2]
	require.Len(t, sample.Params, 3)
	assert.Equal(t, []string{"reasoning", "table_name", "row_count"},
		[]string{sample.Params[0].Name, sample.Params[1].Name, sample.Params[2].Name})

	p, ok := sample.Param("table_name")
	require.True(t, ok)
	assert.False(t, p.Required)
	assert.Equal(t, "orders", p.Default)

	p, ok = sample.Param("row_count")
	require.True(t, ok)
	assert.True(t, p.Required)
	assert.Equal(t, "integer", p.Type)

	// table_name is optional on exactly two tools.
	optional := 0
	for _, s := range specs {
		for _, p := range s.Params {
			if !p.Required {
				assert.Equal(t, "table_name", p.Name)
				optional++
			}
		}
	}
	assert.Equal(t, 2, optional)
}

func TestCatalog_Validate(t *testing.T) {
	c, _ := newFixture(t)

	tests := []struct {
		name  string
		tool  string
		raw   string
		field string
		want  any
	}{
		{name: "list", tool: ListSources, raw: `{"reasoning":"look"}`, want: ListSourcesArgs{Reasoning: "look"}},
		{name: "describe default table", tool: DescribeSchema, raw: `{"reasoning":"r"}`, want: DescribeSchemaArgs{Reasoning: "r", TableName: "orders"}},
		{name: "describe explicit table", tool: DescribeSchema, raw: `{"reasoning":"r","table_name":"users"}`, want: DescribeSchemaArgs{Reasoning: "r", TableName: "users"}},
		{name: "sample", tool: SampleData, raw: `{"reasoning":"r","row_count":5}`, want: SampleDataArgs{Reasoning: "r", TableName: "orders", RowCount: 5}},
		{name: "test query trimmed", tool: TestQuery, raw: `{"reasoning":"r","sql":"  SELECT 1 "}`, want: TestQueryArgs{Reasoning: "r", SQL: "SELECT 1"}},
		{name: "missing reasoning", tool: ListSources, raw: `{}`, field: "reasoning"},
		{name: "empty payload", tool: FinalQuery, raw: ``, field: "reasoning"},
		{name: "missing row_count", tool: SampleData, raw: `{"reasoning":"r"}`, field: "row_count"},
		{name: "row_count wrong type", tool: SampleData, raw: `{"reasoning":"r","row_count":"5"}`, field: "row_count"},
		{name: "row_count zero", tool: SampleData, raw: `{"reasoning":"r","row_count":0}`, field: "row_count"},
		{name: "row_count too large", tool: SampleData, raw: `{"reasoning":"r","row_count":1000}`, field: "row_count"},
		{name: "blank sql", tool: FinalQuery, raw: `{"reasoning":"r","sql":"   "}`, field: "sql"},
		{name: "unknown field", tool: TestQuery, raw: `{"reasoning":"r","sql":"SELECT 1","sql_query":"x"}`, field: "sql_query"},
		{name: "malformed json", tool: TestQuery, raw: `{"reasoning":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := c.Validate(tt.tool, tt.raw)
			if tt.want != nil {
				require.NoError(t, err)
				assert.Equal(t, tt.tool, args.Tool)
				assert.Equal(t, tt.want, args.Value)
				return
			}

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.tool, ve.Tool)
			assert.Equal(t, tt.field, ve.Field)
			assert.Contains(t, ve.Error(), "invalid arguments for "+tt.tool)
			assert.Equal(t, Arguments{}, args)
		})
	}
}

func TestCatalog_Validate_UnknownTool(t *testing.T) {
	c, _ := newFixture(t)

	_, err := c.Validate("drop_table", `{"reasoning":"r"}`)

	var ute *UnknownToolError
	require.ErrorAs(t, err, &ute)
	assert.Equal(t, "drop_table", ute.Name)

	var ve *ValidationError
	assert.False(t, errors.As(err, &ve))
}

func TestCatalog_MaxSampleRows(t *testing.T) {
	src := testutil.NewFakeSource(target)
	c := NewCatalog(NewExecutor(src, target), func(o *CatalogOptions) { o.MaxSampleRows = 10 })

	_, err := c.Validate(SampleData, `{"reasoning":"r","row_count":11}`)
	assert.Error(t, err)

	_, err = c.Validate(SampleData, `{"reasoning":"r","row_count":10}`)
	assert.NoError(t, err)
}

func TestExecutor_ListSources(t *testing.T) {
	c, src := newFixture(t)

	res := run(t, c, ListSources, `{"reasoning":"r"}`)
	assert.True(t, res.Success)
	assert.Equal(t, `["orders","users"]`, res.Output)
	assert.Equal(t, "call-1", res.CallID)

	src.FailList(errors.New("permission denied"))
	res = run(t, c, ListSources, `{"reasoning":"r"}`)
	assert.True(t, res.Success)
	assert.Equal(t, "[]", res.Output)
}

type entry struct {
	level string
	msg   string
	args  []any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []entry
}

func (l *recordingLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry{level: level, msg: msg, args: args})
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

var _ logging.Logger = (*recordingLogger)(nil)

func TestExecutor_LogsToConfiguredLogger(t *testing.T) {
	src := testutil.NewFakeSource(target).Table("orders", orderFields)
	logger := &recordingLogger{}
	c := NewCatalog(NewExecutor(src, target, func(o *ExecutorOptions) { o.Logger = logger }))

	res := run(t, c, ListSources, `{"reasoning":"find tables"}`)
	require.True(t, res.Success)

	src.FailList(errors.New("permission denied"))
	run(t, c, ListSources, `{"reasoning":"again"}`)

	require.Len(t, logger.entries, 2)

	first := logger.entries[0]
	assert.Equal(t, "info", first.level)
	assert.Equal(t, "tool.list_sources", first.msg)
	assert.Subset(t, first.args, []any{"component", "executor", "run_id", "run-1", "fc_id", "call-1", "reasoning", "find tables"})

	second := logger.entries[1]
	assert.Equal(t, "warn", second.level)
	assert.Equal(t, "tool.list_sources.failed", second.msg)
}

func TestExecutor_DescribeSchema(t *testing.T) {
	c, src := newFixture(t)

	first := run(t, c, DescribeSchema, `{"reasoning":"r"}`)
	second := run(t, c, DescribeSchema, `{"reasoning":"again","table_name":"orders"}`)

	assert.Equal(t, "id: INTEGER\nstatus: STRING", first.Output)
	assert.Equal(t, first.Output, second.Output)
	assert.Equal(t, 2, src.SchemaCalls())

	missing := run(t, c, DescribeSchema, `{"reasoning":"r","table_name":"nope"}`)
	assert.True(t, missing.Success)
	assert.Equal(t, "", missing.Output)
}

func TestExecutor_SampleData_Normalization(t *testing.T) {
	c, src := newFixture(t)

	colon := run(t, c, SampleData, `{"reasoning":"r","table_name":"proj:ds:orders","row_count":2}`)
	dotted := run(t, c, SampleData, `{"reasoning":"r","table_name":"proj.ds.orders","row_count":2}`)
	bare := run(t, c, SampleData, `{"reasoning":"r","row_count":2}`)

	assert.Equal(t, "SELECT * FROM `proj.ds.orders` LIMIT 2", colon.SQL)
	assert.Equal(t, colon.SQL, dotted.SQL)
	assert.Equal(t, colon.SQL, bare.SQL)
	assert.Equal(t, colon.Output, dotted.Output)
	assert.Equal(t, 2, colon.Rows.Len())
	assert.Len(t, src.Queries(), 3)

	missing := run(t, c, SampleData, `{"reasoning":"r","table_name":"other.nope","row_count":2}`)
	assert.True(t, missing.Success)
	assert.Equal(t, "", missing.Output)
}

func TestExecutor_TestQuery(t *testing.T) {
	c, src := newFixture(t)
	src.OnQuery("SELECT COUNT(*) AS n FROM `proj.ds.orders`", &datasource.Rows{Columns: []string{"n"}, Values: [][]any{{int64(3)}}})

	ok := run(t, c, TestQuery, `{"reasoning":"r","sql":"SELECT COUNT(*) AS n FROM `+"`proj.ds.orders`"+`"}`)
	assert.True(t, ok.Success)
	assert.Equal(t, `{"n": 3}`, ok.Output)
	assert.False(t, ok.Terminal())

	bad := run(t, c, TestQuery, `{"reasoning":"r","sql":"SELEC 1"}`)
	assert.False(t, bad.Success)
	assert.Equal(t, "syntax error: unrecognized statement", bad.Error)
	assert.Equal(t, `{"error":"syntax error: unrecognized statement"}`, bad.Payload())
}

func TestExecutor_FinalQuery(t *testing.T) {
	c, src := newFixture(t)
	src.OnQuery("SELECT 1 AS one", &datasource.Rows{Columns: []string{"one"}, Values: [][]any{{int64(1)}}})

	ok := run(t, c, FinalQuery, `{"reasoning":"r","sql":"SELECT 1 AS one"}`)
	assert.True(t, ok.Terminal())
	assert.Equal(t, "SELECT 1 AS one", ok.SQL)
	assert.Equal(t, `{"result":"{\"one\": 1}"}`, ok.Payload())

	bad := run(t, c, FinalQuery, `{"reasoning":"r","sql":"SELECT FROM"}`)
	assert.False(t, bad.Success)
	assert.False(t, bad.Terminal())
	assert.NotEmpty(t, bad.Error)
}

type panicSource struct{ datasource.Source }

func (panicSource) Query(context.Context, string) (*datasource.Rows, error) { panic("boom") }

func TestCatalog_Dispatch_RecoversPanic(t *testing.T) {
	c := NewCatalog(NewExecutor(panicSource{}, target))

	res := run(t, c, TestQuery, `{"reasoning":"r","sql":"SELECT 1"}`)
	assert.False(t, res.Success)
	assert.Equal(t, TestQuery, res.Tool)
	assert.Equal(t, "call-1", res.CallID)
	assert.Contains(t, res.Error, "[PANIC]")
	assert.Contains(t, res.Error, "boom")
}

type slowSource struct{ datasource.Source }

func (slowSource) Query(ctx context.Context, _ string) (*datasource.Rows, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestExecutor_QueryTimeout(t *testing.T) {
	exec := NewExecutor(slowSource{}, target, func(o *ExecutorOptions) { o.QueryTimeout = 10 * time.Millisecond })
	c := NewCatalog(exec)

	res := run(t, c, TestQuery, `{"reasoning":"r","sql":"SELECT 1"}`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, context.DeadlineExceeded.Error())
}

func TestResult_Payload(t *testing.T) {
	assert.Equal(t, `{"result":"[]"}`, Result{Success: true, Output: "[]"}.Payload())
	assert.Equal(t, `{"result":""}`, Result{Success: true}.Payload())
	assert.Equal(t, `{"error":"bad"}`, Result{Error: "bad"}.Payload())
}
