package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	KeyProjectID, KeyDatasetID, KeyTableName, KeyLocation,
	KeyOpenAIAPIKey, KeyAnthropicAPIKey, KeyPostgresDSN,
	KeyProvider, KeyModel, KeySource, KeyMaxIterations, KeyMaxSampleRows,
	KeyModelTimeout, KeyQueryTimeout, KeyLogLevel, KeyLogFormat,
}

// clearEnv blanks every key for the duration of the test. Empty values are
// treated as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func noEnvFile(o *LoadOptions) { o.EnvFile = "" }

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(noEnvFile)
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, SourceBigQuery, cfg.Source)
	assert.Equal(t, 10, cfg.MaxIterations)
	assert.Equal(t, 100, cfg.MaxSampleRows)
	assert.Equal(t, 120*time.Second, cfg.ModelTimeout)
	assert.Equal(t, 60*time.Second, cfg.QueryTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv(KeyProjectID, "proj")
	t.Setenv(KeyDatasetID, "ds")
	t.Setenv(KeyTableName, " events ")
	t.Setenv(KeyOpenAIAPIKey, "sk-test")
	t.Setenv(KeyMaxIterations, "5")
	t.Setenv(KeyModelTimeout, "30s")

	cfg, err := Load(noEnvFile)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "events", cfg.TableName)
	assert.Equal(t, 5, cfg.MaxIterations)
	assert.Equal(t, 30*time.Second, cfg.ModelTimeout)
	assert.Equal(t, "sk-test", cfg.APIKey())
	assert.Equal(t, "proj.ds.events", cfg.Target().FullPath())
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv only fills unset variables, so these must be absent.
	for _, k := range []string{KeyProjectID, KeyDatasetID} {
		require.NoError(t, os.Unsetenv(k))
	}
	t.Cleanup(func() {
		_ = os.Unsetenv(KeyProjectID)
		_ = os.Unsetenv(KeyDatasetID)
	})

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BQ_PROJECT_ID=from-file\nBQ_DATASET_ID=ds\n"), 0o600))

	cfg, err := Load(func(o *LoadOptions) { o.EnvFile = path })
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.ProjectID)
	assert.Equal(t, "ds", cfg.DatasetID)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	clearEnv(t)
	missing := filepath.Join(t.TempDir(), "nope.env")

	_, err := Load(func(o *LoadOptions) { o.EnvFile = missing })
	require.NoError(t, err)

	_, err = Load(func(o *LoadOptions) {
		o.EnvFile = missing
		o.RequireEnvFile = true
	})
	require.Error(t, err)
}

func TestValidate_ReportsAllMissingKeys(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(noEnvFile)
	require.NoError(t, err)

	err = cfg.Validate()
	require.ErrorIs(t, err, ErrMissingConfig)
	for _, k := range []string{KeyProjectID, KeyDatasetID, KeyTableName, KeyOpenAIAPIKey} {
		assert.Contains(t, err.Error(), k)
	}
}

func TestValidate_ProviderKey(t *testing.T) {
	cfg := &Config{
		ProjectID:     "p",
		DatasetID:     "d",
		TableName:     "t",
		Provider:      ProviderAnthropic,
		Source:        SourceBigQuery,
		MaxIterations: 10,
		OpenAIAPIKey:  "sk-openai",
	}

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrMissingConfig)
	assert.Contains(t, err.Error(), KeyAnthropicAPIKey)

	cfg.AnthropicAPIKey = "sk-ant"
	require.NoError(t, cfg.Validate())
}

func TestValidate_Postgres(t *testing.T) {
	cfg := &Config{
		TableName:     "t",
		Provider:      ProviderOpenAI,
		OpenAIAPIKey:  "k",
		Source:        SourcePostgres,
		MaxIterations: 3,
	}

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrMissingConfig)
	assert.Contains(t, err.Error(), KeyPostgresDSN)
	assert.NotContains(t, err.Error(), KeyProjectID)

	cfg.PostgresDSN = "postgres://localhost/db"
	require.NoError(t, cfg.Validate())
}

func TestValidate_Invalid(t *testing.T) {
	base := Config{Provider: ProviderOpenAI, Source: SourceBigQuery, MaxIterations: 1}

	cfg := base
	cfg.Provider = "gemini"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = base
	cfg.Source = "sqlite"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = base
	cfg.MaxIterations = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}
