package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/bqagent"
	"github.com/hupe1980/bqagent/config"
	"github.com/hupe1980/bqagent/logging"
)

const version = "0.1.0"

// errNoCredentials is returned when the BigQuery source runs without a key file.
var errNoCredentials = errors.New("--credentials is required for the bigquery source")

type rootFlags struct {
	credentials string
	prompt      string
	compute     int
	provider    string
	model       string
	source      string
	envFile     string
	logLevel    string
	logFormat   string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f rootFlags

	cmd := &cobra.Command{
		Use:   "bqagent",
		Short: "Turn a natural language question into a SQL query and its rows",
		Long: `bqagent lets a language model explore one warehouse table with a fixed set of
tools (list_sources, describe_schema, sample_data, test_query, final_query)
until it runs a final query or the compute budget is spent.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(func(o *config.LoadOptions) { o.EnvFile = f.envFile })
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)

			if cfg.Source == config.SourceBigQuery && f.credentials == "" {
				return errNoCredentials
			}

			logger := newLogger(cfg, stderr)

			a, err := bqagent.New(cmd.Context(), cfg, func(o *bqagent.Options) {
				o.CredentialsFile = f.credentials
				o.Logger = logger
			})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			res, err := a.Run(cmd.Context(), f.prompt)
			if err != nil {
				return err
			}

			logger.Info("agent.result", "iterations", res.Iterations, "rows", res.Rows.Len(), "sql", res.SQL)
			_, err = fmt.Fprintln(stdout, res.Output)
			return err
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.credentials, "credentials", "c", "", "path to the service account JSON key")
	fs.StringVarP(&f.prompt, "prompt", "p", "", "natural language request")
	fs.IntVarP(&f.compute, "compute", "n", 10, "maximum number of agent loop iterations")
	fs.StringVar(&f.provider, "provider", config.ProviderOpenAI, "model provider (openai, anthropic)")
	fs.StringVar(&f.model, "model", "", "model id (provider default when empty)")
	fs.StringVar(&f.source, "source", config.SourceBigQuery, "data source (bigquery, postgres)")
	fs.StringVar(&f.envFile, "env-file", ".env", "dotenv file read before the environment")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", "console", "log format (console, json)")
	_ = cmd.MarkFlagRequired("prompt")

	cmd.SetVersionTemplate(`{{printf "%s version %s" .Name .Version}}
`)

	return cmd
}

// apply overrides config values with flags the user set explicitly.
func (f *rootFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("compute") {
		cfg.MaxIterations = f.compute
	}
	if fs.Changed("provider") {
		cfg.Provider = strings.ToLower(f.provider)
	}
	if fs.Changed("model") {
		cfg.Model = f.model
	}
	if fs.Changed("source") {
		cfg.Source = strings.ToLower(f.source)
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if fs.Changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
}

func newLogger(cfg *config.Config, out io.Writer) logging.Logger {
	return logging.NewZerologLogger(logging.ZerologConfig{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Pretty: cfg.LogFormat != "json",
		Output: out,
	})
}
