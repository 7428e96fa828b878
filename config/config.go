// Package config loads the runtime configuration of the agent from the
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/hupe1980/bqagent/datasource"
)

// Environment keys.
const (
	KeyProjectID       = "BQ_PROJECT_ID"
	KeyDatasetID       = "BQ_DATASET_ID"
	KeyTableName       = "BQ_TABLE_NAME"
	KeyLocation        = "BQ_LOCATION"
	KeyOpenAIAPIKey    = "OPENAI_API_KEY"
	KeyAnthropicAPIKey = "ANTHROPIC_API_KEY"
	KeyPostgresDSN     = "POSTGRES_DSN"
	KeyProvider        = "BQAGENT_PROVIDER"
	KeyModel           = "BQAGENT_MODEL"
	KeySource          = "BQAGENT_SOURCE"
	KeyMaxIterations   = "BQAGENT_MAX_ITERATIONS"
	KeyMaxSampleRows   = "BQAGENT_MAX_SAMPLE_ROWS"
	KeyModelTimeout    = "BQAGENT_MODEL_TIMEOUT"
	KeyQueryTimeout    = "BQAGENT_QUERY_TIMEOUT"
	KeyLogLevel        = "BQAGENT_LOG_LEVEL"
	KeyLogFormat       = "BQAGENT_LOG_FORMAT"
)

// Providers and sources.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	SourceBigQuery = "bigquery"
	SourcePostgres = "postgres"
)

var (
	// ErrMissingConfig is returned when required keys are absent.
	ErrMissingConfig = errors.New("missing configuration")
	// ErrInvalidConfig is returned when a value is present but unusable.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the resolved runtime configuration.
type Config struct {
	ProjectID string
	DatasetID string
	TableName string
	Location  string

	Provider        string
	Model           string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	Source      string
	PostgresDSN string

	MaxIterations int
	MaxSampleRows int
	ModelTimeout  time.Duration
	QueryTimeout  time.Duration

	LogLevel  string
	LogFormat string
}

// LoadOptions configures Load.
type LoadOptions struct {
	// EnvFile is read before the environment. Missing files are ignored
	// unless RequireEnvFile is set.
	EnvFile        string
	RequireEnvFile bool
}

// Load reads the configuration. Variables already present in the process
// environment win over the .env file.
func Load(optFns ...func(o *LoadOptions)) (*Config, error) {
	opts := LoadOptions{EnvFile: ".env"}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			if opts.RequireEnvFile || !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load %s: %w", opts.EnvFile, err)
			}
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		ProjectID:       strings.TrimSpace(v.GetString(KeyProjectID)),
		DatasetID:       strings.TrimSpace(v.GetString(KeyDatasetID)),
		TableName:       strings.TrimSpace(v.GetString(KeyTableName)),
		Location:        v.GetString(KeyLocation),
		Provider:        strings.ToLower(v.GetString(KeyProvider)),
		Model:           v.GetString(KeyModel),
		OpenAIAPIKey:    v.GetString(KeyOpenAIAPIKey),
		AnthropicAPIKey: v.GetString(KeyAnthropicAPIKey),
		Source:          strings.ToLower(v.GetString(KeySource)),
		PostgresDSN:     v.GetString(KeyPostgresDSN),
		MaxIterations:   v.GetInt(KeyMaxIterations),
		MaxSampleRows:   v.GetInt(KeyMaxSampleRows),
		ModelTimeout:    v.GetDuration(KeyModelTimeout),
		QueryTimeout:    v.GetDuration(KeyQueryTimeout),
		LogLevel:        v.GetString(KeyLogLevel),
		LogFormat:       v.GetString(KeyLogFormat),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyProvider, ProviderOpenAI)
	v.SetDefault(KeySource, SourceBigQuery)
	v.SetDefault(KeyMaxIterations, 10)
	v.SetDefault(KeyMaxSampleRows, 100)
	v.SetDefault(KeyModelTimeout, 120*time.Second)
	v.SetDefault(KeyQueryTimeout, 60*time.Second)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

// Validate reports every missing required key at once, wrapped in
// ErrMissingConfig. Unknown providers or sources yield ErrInvalidConfig.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Provider)
	}
	switch c.Source {
	case SourceBigQuery, SourcePostgres:
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidConfig, c.Source)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, KeyMaxIterations)
	}

	var missing []string
	if c.Source == SourceBigQuery {
		if c.ProjectID == "" {
			missing = append(missing, KeyProjectID)
		}
		if c.DatasetID == "" {
			missing = append(missing, KeyDatasetID)
		}
	}
	if c.TableName == "" {
		missing = append(missing, KeyTableName)
	}
	if c.Source == SourcePostgres && c.PostgresDSN == "" {
		missing = append(missing, KeyPostgresDSN)
	}
	if c.APIKey() == "" {
		missing = append(missing, c.apiKeyName())
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// APIKey returns the key of the selected provider.
func (c *Config) APIKey() string {
	if c.Provider == ProviderAnthropic {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

func (c *Config) apiKeyName() string {
	if c.Provider == ProviderAnthropic {
		return KeyAnthropicAPIKey
	}
	return KeyOpenAIAPIKey
}

// Target returns the configured target table.
func (c *Config) Target() datasource.Target {
	return datasource.Target{
		Project: c.ProjectID,
		Dataset: c.DatasetID,
		Table:   c.TableName,
	}
}
