// Package postgres implements datasource.Source on PostgreSQL via pgx.
//
// The target's dataset maps to a Postgres schema and its project to the
// database the pool is connected to. Backtick quoted paths written for
// BigQuery (`project.dataset.table`) are rewritten to "schema"."table".
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hupe1980/bqagent/datasource"
	"github.com/hupe1980/bqagent/logging"
)

// DefaultSchema is used when the target names no dataset.
const DefaultSchema = "public"

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Options configures the Postgres source.
type Options struct {
	Target datasource.Target
	Logger logging.Logger
}

// Source runs metadata lookups and queries against Postgres.
type Source struct {
	db   querier
	pool *pgxpool.Pool
	opts Options
}

// New connects a pool to connStr and returns a Source.
func New(ctx context.Context, connStr string, optFns ...func(o *Options)) (*Source, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	s := newSource(pool, optFns...)
	s.pool = pool

	return s, nil
}

func newSource(db querier, optFns ...func(o *Options)) *Source {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Target.Dataset == "" {
		opts.Target.Dataset = DefaultSchema
	}
	return &Source{db: db, opts: opts}
}

// Close releases the pool.
func (s *Source) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// ListTables implements datasource.Source.
func (s *Source) ListTables(ctx context.Context, dataset string) ([]string, error) {
	if dataset == "" {
		dataset = s.opts.Target.Dataset
	}

	rows, err := s.db.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		ORDER BY table_name`, dataset)
	if err != nil {
		return nil, fmt.Errorf("listing tables of %s: %w", dataset, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// GetSchema implements datasource.Source.
func (s *Source) GetSchema(ctx context.Context, table string) ([]datasource.Field, error) {
	_, schema, name := s.opts.Target.Resolve(table)

	rows, err := s.db.Query(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schema, name)
	if err != nil {
		return nil, fmt.Errorf("getting table %s.%s: %w", schema, name, err)
	}
	defer rows.Close()

	var fields []datasource.Field
	for rows.Next() {
		var col, typ, nullable string
		if err := rows.Scan(&col, &typ, &nullable); err != nil {
			return nil, err
		}
		mode := "NULLABLE"
		if nullable == "NO" {
			mode = "REQUIRED"
		}
		fields = append(fields, datasource.Field{Name: col, Type: strings.ToUpper(typ), Mode: mode})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("table %s.%s not found", schema, name)
	}

	return fields, nil
}

// Query implements datasource.Source.
func (s *Source) Query(ctx context.Context, sql string) (*datasource.Rows, error) {
	translated := TranslateSQL(sql)

	rows, err := s.db.Query(ctx, translated)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	defer rows.Close()

	out := &datasource.Rows{}
	for _, fd := range rows.FieldDescriptions() {
		out.Columns = append(out.Columns, fd.Name)
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		out.Values = append(out.Values, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}

	s.opts.Logger.Debug("postgres.query.completed", "rows", out.Len())

	return out, nil
}

var backtickPath = regexp.MustCompile("`([^`]+)`")

// TranslateSQL rewrites backtick quoted table paths into double quoted
// schema.table identifiers. A leading project component is dropped.
func TranslateSQL(sql string) string {
	return backtickPath.ReplaceAllStringFunc(sql, func(m string) string {
		parts := strings.Split(datasource.NormalizePath(strings.Trim(m, "`")), ".")
		if len(parts) > 2 {
			parts = parts[len(parts)-2:]
		}
		for i, p := range parts {
			parts[i] = pgx.Identifier{p}.Sanitize()
		}
		return strings.Join(parts, ".")
	})
}

var _ datasource.Source = (*Source)(nil)
