package tool

import (
	"fmt"
	"strings"
)

// Defaults are the values optional and bounded parameters fall back to.
type Defaults struct {
	TableName     string // substituted for a missing table_name
	MaxSampleRows int    // upper bound for row_count
}

// DefaultMaxSampleRows bounds sample_data when no limit is configured.
const DefaultMaxSampleRows = 100

// Arguments are validated, typed arguments for one tool. Value holds one of
// the *Args structs of this package.
type Arguments struct {
	Tool  string
	Value any
}

// Reasoning returns the model supplied justification for the call.
func (a Arguments) Reasoning() string {
	switch v := a.Value.(type) {
	case ListSourcesArgs:
		return v.Reasoning
	case DescribeSchemaArgs:
		return v.Reasoning
	case SampleDataArgs:
		return v.Reasoning
	case TestQueryArgs:
		return v.Reasoning
	case FinalQueryArgs:
		return v.Reasoning
	default:
		return ""
	}
}

// normalizer is implemented by argument structs that fill defaults and check
// constraints JSON schema cannot express.
type normalizer interface {
	normalize(d Defaults) error
}

// ListSourcesArgs are the arguments of list_sources.
type ListSourcesArgs struct {
	Reasoning string `json:"reasoning" description:"Why we need to list tables relative to the user request"`
}

// DescribeSchemaArgs are the arguments of describe_schema.
type DescribeSchemaArgs struct {
	Reasoning string `json:"reasoning" description:"Why we need to describe this table"`
	TableName string `json:"table_name,omitempty" description:"Name of the table to describe"`
}

func (a *DescribeSchemaArgs) normalize(d Defaults) error {
	a.TableName = strings.TrimSpace(a.TableName)
	if a.TableName == "" {
		a.TableName = d.TableName
	}
	return nil
}

// SampleDataArgs are the arguments of sample_data.
type SampleDataArgs struct {
	Reasoning string `json:"reasoning" description:"Why we need to sample this table"`
	TableName string `json:"table_name,omitempty" description:"Name of the table to sample"`
	RowCount  int    `json:"row_count" description:"Number of rows to sample, aim for 3-5 rows" minimum:"1"`
}

func (a *SampleDataArgs) normalize(d Defaults) error {
	a.TableName = strings.TrimSpace(a.TableName)
	if a.TableName == "" {
		a.TableName = d.TableName
	}
	if a.RowCount < 1 {
		return &ValidationError{Field: "row_count", Message: "must be at least 1"}
	}
	if d.MaxSampleRows > 0 && a.RowCount > d.MaxSampleRows {
		return &ValidationError{Field: "row_count", Message: fmt.Sprintf("must be at most %d", d.MaxSampleRows)}
	}
	return nil
}

// TestQueryArgs are the arguments of test_query.
type TestQueryArgs struct {
	Reasoning string `json:"reasoning" description:"Why we are testing this specific query"`
	SQL       string `json:"sql" description:"The SQL query to test (must use the complete table path)"`
}

func (a *TestQueryArgs) normalize(Defaults) error {
	return requireSQL(&a.SQL)
}

// FinalQueryArgs are the arguments of final_query.
type FinalQueryArgs struct {
	Reasoning string `json:"reasoning" description:"Final explanation of how the query satisfies the user request"`
	SQL       string `json:"sql" description:"The validated SQL query to run (must use the complete table path)"`
}

func (a *FinalQueryArgs) normalize(Defaults) error {
	return requireSQL(&a.SQL)
}

func requireSQL(sql *string) error {
	*sql = strings.TrimSpace(*sql)
	if *sql == "" {
		return &ValidationError{Field: "sql", Message: "must not be blank"}
	}
	return nil
}
