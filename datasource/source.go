// Package datasource defines the query executor the agent explores and queries.
//
// A Source answers three questions: which tables exist, what columns a table
// has and what rows a SQL statement returns. Concrete implementations live in
// the bigquery and postgres subpackages.
package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Field is a single column of a table schema.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Mode string `json:"mode,omitempty"` // NULLABLE, REQUIRED, REPEATED (BigQuery)
}

// Rows is a materialized query result.
type Rows struct {
	Columns []string `json:"columns"`
	Values  [][]any  `json:"values"`
}

// Len returns the number of rows.
func (r *Rows) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Values)
}

// String renders one JSON object per row, keys in column order.
func (r *Rows) String() string {
	if r.Len() == 0 {
		return ""
	}

	lines := make([]string, 0, len(r.Values))
	for _, row := range r.Values {
		var sb strings.Builder
		sb.WriteByte('{')
		for i, col := range r.Columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			key, _ := json.Marshal(col)
			sb.Write(key)
			sb.WriteString(": ")

			var v any
			if i < len(row) {
				v = row[i]
			}
			val, err := json.Marshal(v)
			if err != nil {
				val, _ = json.Marshal(fmt.Sprint(v))
			}
			sb.Write(val)
		}
		sb.WriteByte('}')
		lines = append(lines, sb.String())
	}
	return strings.Join(lines, "\n")
}

// Source is the data source the tools run against.
type Source interface {
	// ListTables returns the table ids of a dataset (schema for SQL databases).
	ListTables(ctx context.Context, dataset string) ([]string, error)

	// GetSchema returns the columns of a table in declaration order. The
	// table may be bare or qualified; see Target.Resolve.
	GetSchema(ctx context.Context, table string) ([]Field, error)

	// Query runs a SQL statement and returns all result rows.
	Query(ctx context.Context, sql string) (*Rows, error)
}

// FormatSchema renders fields as "name: TYPE" lines in schema order.
func FormatSchema(fields []Field) string {
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		lines = append(lines, fmt.Sprintf("%s: %s", f.Name, f.Type))
	}
	return strings.Join(lines, "\n")
}

// NormalizePath rewrites a colon qualified identifier (proj:ds.tbl or
// proj:ds:tbl) into the dotted form.
func NormalizePath(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), ":", ".")
}

// Target is the configured table the agent works on.
type Target struct {
	Project string `json:"project"`
	Dataset string `json:"dataset"`
	Table   string `json:"table"`
}

// FullPath returns project.dataset.table.
func (t Target) FullPath() string {
	return strings.Join([]string{t.Project, t.Dataset, t.Table}, ".")
}

// Qualify normalizes name and returns the path to query. A dotted name is
// used as-is; a bare name is placed in the target's project and dataset. An
// empty name means the target table itself.
func (t Target) Qualify(name string) string {
	name = NormalizePath(name)
	if name == "" {
		return t.FullPath()
	}
	if strings.Contains(name, ".") {
		return name
	}
	return strings.Join([]string{t.Project, t.Dataset, name}, ".")
}

// Resolve splits name into project, dataset and table, filling the missing
// leading parts from the target.
func (t Target) Resolve(name string) (project, dataset, table string) {
	parts := strings.Split(NormalizePath(name), ".")
	switch len(parts) {
	case 1:
		table = parts[0]
		if table == "" {
			table = t.Table
		}
		return t.Project, t.Dataset, table
	case 2:
		return t.Project, parts[0], parts[1]
	default:
		return strings.Join(parts[:len(parts)-2], "."), parts[len(parts)-2], parts[len(parts)-1]
	}
}

// Validate reports whether every part of the target is set.
func (t Target) Validate() error {
	var missing []string
	if t.Project == "" {
		missing = append(missing, "project")
	}
	if t.Dataset == "" {
		missing = append(missing, "dataset")
	}
	if t.Table == "" {
		missing = append(missing, "table")
	}
	if len(missing) > 0 {
		return fmt.Errorf("incomplete target: missing %s", strings.Join(missing, ", "))
	}
	return nil
}
