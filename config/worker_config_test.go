package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report_worker/pkg/apperr"
)

func validConfig() *Config {
	return &Config{
		OpenAIAPIKey:       "sk-test",
		RedditClientID:     "id",
		RedditClientSecret: "secret",
		FilterConcurrency:  4,
		WorkerCount:        2,
		Timezone:           "UTC",
		ReportStore:        StoreNone,
		Catalog:            DefaultCatalog(),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid api", ModeAPI, func(*Config) {}, false},
		{"valid run", ModeRun, func(*Config) {}, false},
		{"unknown mode", "batch", func(*Config) {}, true},
		{"missing openai key", ModeAPI, func(c *Config) { c.OpenAIAPIKey = "" }, true},
		{"missing reddit secret", ModeRun, func(c *Config) { c.RedditClientSecret = "" }, true},
		{"zero concurrency", ModeAPI, func(c *Config) { c.FilterConcurrency = 0 }, true},
		{"bad timezone", ModeAPI, func(c *Config) { c.Timezone = "Mars/Olympus" }, true},
		{"schedule without agencies", ModeSchedule, func(c *Config) { c.Catalog.Agencies = nil }, true},
		{"postgres without url", ModeAPI, func(c *Config) { c.ReportStore = StorePostgres }, true},
		{"postgres with url", ModeAPI, func(c *Config) {
			c.ReportStore = StorePostgres
			c.DatabaseURL = "postgres://localhost/reports"
		}, false},
		{"mongo without url", ModeAPI, func(c *Config) { c.ReportStore = StoreMongo }, true},
		{"bigquery without table", ModeAPI, func(c *Config) {
			c.ReportStore = StoreBigQuery
			c.BigQueryProject = "p"
			c.BigQueryDataset = "d"
		}, true},
		{"unknown store", ModeAPI, func(c *Config) { c.ReportStore = "sqlite" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate(tt.mode)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperr.IsCode(err, apperr.CodeConfigError))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AGENCIES_FILE", "")
	t.Setenv("REPORT_STORE", "BigQuery")
	t.Setenv("FILTER_CONCURRENCY", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreBigQuery, cfg.ReportStore)
	assert.Equal(t, 8, cfg.FilterConcurrency)
	assert.Equal(t, "boston-reports", cfg.BigQueryTable)
	assert.Len(t, cfg.Catalog.Agencies, 10)
	assert.Equal(t, []string{"boston", "massachusetts", "cambridge", "MassachusettsUSA", "CambridgeMA"}, cfg.Catalog.Channels)
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()

	t.Run("file overrides agencies and keeps default channels", func(t *testing.T) {
		path := filepath.Join(dir, "agencies.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
agencies:
  - name: " MassHealth "
    topic: health insurance coverage
    keywords: [masshealth, medicaid]
  - name: Department of Revenue
`), 0o644))

		c, err := LoadCatalog(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"MassHealth", "Department of Revenue"}, c.AgencyNames())
		assert.Equal(t, defaultChannels, c.Channels)

		profile := c.Profiles()["MassHealth"]
		assert.Equal(t, "health insurance coverage", profile.Topic)
		assert.Equal(t, []string{"masshealth", "medicaid"}, profile.Keywords)
	})

	t.Run("duplicate agency", func(t *testing.T) {
		path := filepath.Join(dir, "dup.yaml")
		require.NoError(t, os.WriteFile(path, []byte("agencies:\n  - name: MBTA\n  - name: MBTA\n"), 0o644))

		_, err := LoadCatalog(path)
		assert.ErrorContains(t, err, "duplicate agency")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCatalog(filepath.Join(dir, "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("empty path gives defaults", func(t *testing.T) {
		c, err := LoadCatalog("")
		require.NoError(t, err)
		assert.Len(t, c.AgencyNames(), 10)
	})
}
