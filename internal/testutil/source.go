package testutil

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/hupe1980/bqagent/datasource"
)

var sampleQuery = regexp.MustCompile("^SELECT \\* FROM `([^`]+)` LIMIT (\\d+)$")

type fakeTable struct {
	fields []datasource.Field
	rows   [][]any
}

// FakeSource is an in-memory datasource.Source.
//
//	src := NewFakeSource(target).
//	  Table("orders", []datasource.Field{{Name: "id", Type: "INTEGER"}}, []any{int64(1)}).
//	  OnQuery("SELECT COUNT(*) AS n FROM `p.d.orders`", &datasource.Rows{...})
//
// Sample reads (SELECT * FROM `path` LIMIT n) are answered from the table
// rows; other statements must be registered with OnQuery or FailQuery.
type FakeSource struct {
	mu       sync.Mutex
	target   datasource.Target
	tables   map[string]*fakeTable
	order    []string
	answers  map[string]*datasource.Rows
	failures map[string]error
	listErr  error

	queries     []string
	schemaCalls int
}

// NewFakeSource creates an empty source resolving bare names against target.
func NewFakeSource(target datasource.Target) *FakeSource {
	return &FakeSource{
		target:   target,
		tables:   map[string]*fakeTable{},
		answers:  map[string]*datasource.Rows{},
		failures: map[string]error{},
	}
}

// Table registers a table with its schema and rows (chainable).
func (s *FakeSource) Table(name string, fields []datasource.Field, rows ...[]any) *FakeSource {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.target.Qualify(name)
	if _, ok := s.tables[path]; !ok {
		s.order = append(s.order, path)
	}
	s.tables[path] = &fakeTable{fields: fields, rows: rows}
	return s
}

// OnQuery registers the rows returned for an exact statement (chainable).
func (s *FakeSource) OnQuery(sql string, rows *datasource.Rows) *FakeSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[strings.TrimSpace(sql)] = rows
	return s
}

// FailQuery makes every statement containing substr fail with err (chainable).
func (s *FakeSource) FailQuery(substr string, err error) *FakeSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[substr] = err
	return s
}

// FailList makes ListTables fail with err (chainable).
func (s *FakeSource) FailList(err error) *FakeSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
	return s
}

// Queries returns the statements received so far.
func (s *FakeSource) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.queries))
	copy(out, s.queries)
	return out
}

// SchemaCalls returns how often GetSchema was called.
func (s *FakeSource) SchemaCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schemaCalls
}

// ListTables implements datasource.Source.
func (s *FakeSource) ListTables(ctx context.Context, dataset string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}

	var names []string
	for _, path := range s.order {
		_, ds, tbl := s.target.Resolve(path)
		if ds == dataset {
			names = append(names, tbl)
		}
	}
	return names, nil
}

// GetSchema implements datasource.Source.
func (s *FakeSource) GetSchema(ctx context.Context, table string) ([]datasource.Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.schemaCalls++

	path := s.target.Qualify(table)
	t, ok := s.tables[path]
	if !ok {
		return nil, fmt.Errorf("table %s not found", path)
	}

	out := make([]datasource.Field, len(t.fields))
	copy(out, t.fields)
	return out, nil
}

// Query implements datasource.Source.
func (s *FakeSource) Query(ctx context.Context, sql string) (*datasource.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sql = strings.TrimSpace(sql)
	s.queries = append(s.queries, sql)

	for substr, err := range s.failures {
		if strings.Contains(sql, substr) {
			return nil, err
		}
	}

	if rows, ok := s.answers[sql]; ok {
		return rows, nil
	}

	if m := sampleQuery.FindStringSubmatch(sql); m != nil {
		t, ok := s.tables[m[1]]
		if !ok {
			return nil, fmt.Errorf("table %s not found", m[1])
		}
		n, _ := strconv.Atoi(m[2])
		if n > len(t.rows) {
			n = len(t.rows)
		}
		out := &datasource.Rows{}
		for _, f := range t.fields {
			out.Columns = append(out.Columns, f.Name)
		}
		out.Values = append(out.Values, t.rows[:n]...)
		return out, nil
	}

	return nil, errors.New("syntax error: unrecognized statement")
}

var _ datasource.Source = (*FakeSource)(nil)
