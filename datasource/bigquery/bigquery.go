// Package bigquery implements datasource.Source on the BigQuery v2 REST API.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	bq "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hupe1980/bqagent/datasource"
	"github.com/hupe1980/bqagent/logging"
)

// Options configures the BigQuery source.
type Options struct {
	// Target supplies the default project and dataset for bare table names.
	Target datasource.Target

	// CredentialsFile is a service account JSON key. Its project id becomes
	// the project that owns query jobs.
	CredentialsFile string

	// CredentialsJSON takes precedence over CredentialsFile when set.
	CredentialsJSON []byte

	// Location pins query jobs to a region (optional).
	Location string

	// PollInterval is the wait between job status polls.
	PollInterval time.Duration

	// ClientOptions are appended to the service options (endpoint, http client, ...).
	ClientOptions []option.ClientOption

	Logger logging.Logger
}

// Source runs metadata lookups and queries against BigQuery.
type Source struct {
	svc        *bq.Service
	jobProject string
	opts       Options
}

// New creates a BigQuery source.
func New(ctx context.Context, optFns ...func(o *Options)) (*Source, error) {
	opts := Options{
		PollInterval: time.Second,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	jobProject := opts.Target.Project
	clientOpts := make([]option.ClientOption, 0, len(opts.ClientOptions)+1)

	data := opts.CredentialsJSON
	if len(data) == 0 && opts.CredentialsFile != "" {
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("reading credentials: %w", err)
		}
		data = b
	}

	if len(data) > 0 {
		creds, err := google.CredentialsFromJSON(ctx, data, bq.BigqueryScope)
		if err != nil {
			return nil, fmt.Errorf("parsing credentials: %w", err)
		}
		if creds.ProjectID != "" {
			jobProject = creds.ProjectID
		}
		clientOpts = append(clientOpts, option.WithHTTPClient(oauth2.NewClient(ctx, creds.TokenSource)))
	}

	clientOpts = append(clientOpts, opts.ClientOptions...)

	svc, err := bq.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery service: %w", err)
	}

	if jobProject == "" {
		return nil, errors.New("bigquery: no project for query jobs")
	}

	return &Source{svc: svc, jobProject: jobProject, opts: opts}, nil
}

// JobProject returns the project query jobs are billed to.
func (s *Source) JobProject() string { return s.jobProject }

// ListTables implements datasource.Source.
func (s *Source) ListTables(ctx context.Context, dataset string) ([]string, error) {
	if dataset == "" {
		dataset = s.opts.Target.Dataset
	}

	var names []string
	err := s.svc.Tables.List(s.opts.Target.Project, dataset).Pages(ctx, func(page *bq.TableList) error {
		for _, t := range page.Tables {
			if t.TableReference != nil {
				names = append(names, t.TableReference.TableId)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing tables of %s: %w", dataset, err)
	}

	s.opts.Logger.Debug("bigquery.tables.listed", "dataset", dataset, "count", len(names))

	return names, nil
}

// GetSchema implements datasource.Source.
func (s *Source) GetSchema(ctx context.Context, table string) ([]datasource.Field, error) {
	project, dataset, id := s.opts.Target.Resolve(table)

	t, err := s.svc.Tables.Get(project, dataset, id).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("getting table %s.%s.%s: %w", project, dataset, id, err)
	}

	if t.Schema == nil {
		return nil, nil
	}

	fields := make([]datasource.Field, 0, len(t.Schema.Fields))
	for _, f := range t.Schema.Fields {
		fields = append(fields, datasource.Field{Name: f.Name, Type: f.Type, Mode: f.Mode})
	}

	return fields, nil
}

// Query implements datasource.Source. Standard SQL is used; the call polls
// until the job is complete and then reads every result page.
func (s *Source) Query(ctx context.Context, sql string) (*datasource.Rows, error) {
	start := time.Now()

	req := &bq.QueryRequest{
		Query:        sql,
		UseLegacySql: googleapi.Bool(false),
		Location:     s.opts.Location,
	}

	resp, err := s.svc.Jobs.Query(s.jobProject, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}

	schema := resp.Schema
	rows := resp.Rows
	pageToken := resp.PageToken
	complete := resp.JobComplete

	var jobID, location string
	if resp.JobReference != nil {
		jobID = resp.JobReference.JobId
		location = resp.JobReference.Location
	}

	for !complete || pageToken != "" {
		if jobID == "" {
			return nil, errors.New("query did not complete and returned no job reference")
		}

		if !complete {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.opts.PollInterval):
			}
		}

		call := s.svc.Jobs.GetQueryResults(s.jobProject, jobID).Context(ctx)
		if location != "" {
			call = call.Location(location)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("fetching query results: %w", err)
		}

		complete = page.JobComplete
		if !complete {
			continue
		}

		if schema == nil {
			schema = page.Schema
		}
		rows = append(rows, page.Rows...)
		pageToken = page.PageToken
	}

	out := convertRows(schema, rows)

	s.opts.Logger.Debug("bigquery.query.completed",
		"rows", out.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return out, nil
}

func convertRows(schema *bq.TableSchema, rows []*bq.TableRow) *datasource.Rows {
	out := &datasource.Rows{}
	if schema == nil {
		return out
	}

	types := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		out.Columns = append(out.Columns, f.Name)
		types[i] = f.Type
	}

	for _, r := range rows {
		values := make([]any, len(types))
		for i, cell := range r.F {
			if i >= len(types) {
				break
			}
			values[i] = convertValue(types[i], cell.V)
		}
		out.Values = append(out.Values, values)
	}

	return out
}

// convertValue turns the string encoded REST cell into a Go value. Values
// that fail to parse are kept verbatim.
func convertValue(typ string, v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}

	switch strings.ToUpper(typ) {
	case "INTEGER", "INT64":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case "FLOAT", "FLOAT64":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case "BOOLEAN", "BOOL":
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}

	return s
}

var _ datasource.Source = (*Source)(nil)
