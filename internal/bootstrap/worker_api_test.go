package bootstrap

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report_worker/adapter/in/http"
	"report_worker/adapter/out/taskstore"
	"report_worker/config"
	"report_worker/core/agent/llm"
	"report_worker/pkg/metrics"
)

func newTestDeps() (*config.Config, *Dependencies) {
	cfg := &config.Config{
		Environment:  "test",
		WorkerCount:  1,
		JobTimeout:   time.Minute,
		ScheduleSpec: "0 6 1 * *",
		Timezone:     "UTC",
		Catalog:      config.DefaultCatalog(),
	}
	deps := &Dependencies{
		Config:    cfg,
		Log:       zerolog.Nop(),
		LLMClient: llm.NewClient("test-key"),
		Tasks:     taskstore.NewMemoryStore(),
		Latency:   metrics.NewLatencyRegistry(10),
		Checks:    map[string]http.HealthChecker{},
	}
	return cfg, deps
}

func TestNewAPI(t *testing.T) {
	cfg, deps := newTestDeps()
	w, err := NewWorker(cfg, deps, false)
	require.NoError(t, err)
	deps.Latency.Record("run", 2*time.Second)

	app := NewAPI(cfg, deps, w)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Contains(t, body, "pool")
	assert.Contains(t, body, "llm")
	assert.NotContains(t, body, "postgres")
	stages := body["stages"].(map[string]any)
	assert.Equal(t, float64(1), stages["run"].(map[string]any)["count"])

	// The worker was never started, so submissions are refused.
	req := httptest.NewRequest("POST", "/runs", strings.NewReader(`{"agency":"MBTA","month":3,"year":2024}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)
}

func TestNewWorkerSchedule(t *testing.T) {
	cfg, deps := newTestDeps()

	w, err := NewWorker(cfg, deps, true)
	require.NoError(t, err)
	assert.NotNil(t, w.scheduler)

	cfg.ScheduleSpec = "not a cron spec"
	_, err = NewWorker(cfg, deps, true)
	assert.Error(t, err)
}
