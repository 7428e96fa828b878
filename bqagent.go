// Package bqagent provides a high-level façade that turns a natural language
// question about one warehouse table into a validated SQL query and its rows.
//
// Most applications interact with this package by:
//  1. Loading a config.Config (environment and .env)
//  2. Creating an Agent via New(), optionally overriding the data source,
//     model or logger
//  3. Calling Run with the user's request
//
// The façade wires the data source, the tool catalog, the model provider and
// the agent loop controller.
package bqagent

import (
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/bqagent/agent"
	"github.com/hupe1980/bqagent/config"
	"github.com/hupe1980/bqagent/datasource"
	"github.com/hupe1980/bqagent/datasource/bigquery"
	"github.com/hupe1980/bqagent/datasource/postgres"
	"github.com/hupe1980/bqagent/logging"
	"github.com/hupe1980/bqagent/model"
	"github.com/hupe1980/bqagent/model/anthropic"
	"github.com/hupe1980/bqagent/model/openai"
	"github.com/hupe1980/bqagent/tool"
)

// Options configures the Agent.
type Options struct {
	// CredentialsFile is the service account key used by the BigQuery source.
	CredentialsFile string

	// Source overrides the source built from the config.
	Source datasource.Source

	// Model overrides the provider built from the config.
	Model model.Model

	// Instruction overrides the default task prompt.
	Instruction *agent.Instruction

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Agent is the high-level façade aggregating source, tools, model and loop.
type Agent struct {
	cfg        *config.Config
	source     datasource.Source
	controller *agent.Controller
	logger     logging.Logger
}

// New validates cfg and wires an Agent. Any unset dependency is built from
// the config.
func New(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*Agent, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	target := cfg.Target()
	if cfg.Source == config.SourcePostgres {
		if target.Project == "" {
			target.Project = config.SourcePostgres
		}
		if target.Dataset == "" {
			target.Dataset = postgres.DefaultSchema
		}
	}

	src := opts.Source
	if src == nil {
		var err error
		if src, err = NewSource(ctx, cfg, target, opts.CredentialsFile, opts.Logger); err != nil {
			return nil, err
		}
	}

	m := opts.Model
	if m == nil {
		var err error
		if m, err = NewModel(cfg); err != nil {
			closeSource(src)
			return nil, err
		}
	}

	exec := tool.NewExecutor(src, target, func(o *tool.ExecutorOptions) {
		o.QueryTimeout = cfg.QueryTimeout
		o.Logger = opts.Logger
	})
	catalog := tool.NewCatalog(exec, func(o *tool.CatalogOptions) {
		o.MaxSampleRows = cfg.MaxSampleRows
	})

	controller := agent.NewController(catalog, m, func(o *agent.Options) {
		o.MaxIterations = cfg.MaxIterations
		o.ModelTimeout = cfg.ModelTimeout
		o.Dialect = Dialect(cfg.Source)
		o.Logger = opts.Logger
		if opts.Instruction != nil {
			o.Instruction = *opts.Instruction
		}
	})

	return &Agent{
		cfg:        cfg,
		source:     src,
		controller: controller,
		logger:     opts.Logger,
	}, nil
}

// Run executes the agent loop for one request.
func (a *Agent) Run(ctx context.Context, request string) (*agent.Result, error) {
	return a.controller.Run(ctx, request)
}

// Prompt renders the task prompt the loop would start with.
func (a *Agent) Prompt(request string) (string, error) {
	return a.controller.Prompt(request)
}

// Close releases the data source if it holds resources.
func (a *Agent) Close() error {
	if c, ok := a.source.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Dialect returns the SQL dialect named in the prompt for a source kind.
func Dialect(source string) string {
	if source == config.SourcePostgres {
		return "PostgreSQL"
	}
	return "BigQuery"
}

// NewSource builds the data source selected by cfg.
func NewSource(
	ctx context.Context,
	cfg *config.Config,
	target datasource.Target,
	credentialsFile string,
	logger logging.Logger,
) (datasource.Source, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	switch cfg.Source {
	case config.SourcePostgres:
		return postgres.New(ctx, cfg.PostgresDSN, func(o *postgres.Options) {
			o.Target = target
			o.Logger = logger
		})
	case config.SourceBigQuery:
		src, err := bigquery.New(ctx, func(o *bigquery.Options) {
			o.Target = target
			o.CredentialsFile = credentialsFile
			o.Location = cfg.Location
			o.Logger = logger
		})
		if err != nil {
			return nil, err
		}
		logger.Info("bigquery.source.ready", "target", target.FullPath(), "job_project", src.JobProject())
		return src, nil
	default:
		return nil, fmt.Errorf("%w: unknown source %q", config.ErrInvalidConfig, cfg.Source)
	}
}

// NewModel builds the model provider selected by cfg.
func NewModel(cfg *config.Config) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.APIKey = cfg.OpenAIAPIKey
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = cfg.AnthropicAPIKey
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", config.ErrInvalidConfig, cfg.Provider)
	}
}

func closeSource(src datasource.Source) {
	if c, ok := src.(io.Closer); ok {
		_ = c.Close()
	}
}
