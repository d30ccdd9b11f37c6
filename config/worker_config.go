package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"report_worker/pkg/apperr"
)

// Run modes accepted by main.
const (
	ModeAPI      = "api"      // HTTP front end with an in-process task queue
	ModeSchedule = "schedule" // monthly scheduler with the task queue, no HTTP
	ModeAll      = "all"      // api and schedule together
	ModeRun      = "run"      // one synchronous run from flags
)

// Report store backends.
const (
	StoreNone     = "none"
	StoreBigQuery = "bigquery"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// OpenAI
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64

	// Reddit
	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string
	RedditPageSize     int
	RedditChannelPause time.Duration
	Timezone           string

	// Pipeline
	DataDir           string
	RunLimit          int
	FilterConcurrency int
	AgenciesFile      string
	Catalog           *Catalog

	// Report store
	ReportStore     string
	DatabaseURL     string
	MongoDBURL      string
	MongoDBName     string
	BigQueryProject string
	BigQueryDataset string
	BigQueryTable   string
	BigQueryRegion  string
	GoogleCredsFile string

	// Tasks
	RedisURL     string
	TaskTTL      time.Duration
	WorkerCount  int
	JobTimeout   time.Duration
	ScheduleSpec string
	RunRateLimit int // POST /runs per client per minute, needs Redis

	// CORS
	AllowedOrigins []string
}

// Load reads the environment and the agency catalog.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", ""),

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 4096),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.7),

		RedditClientID:     getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),
		RedditUserAgent:    getEnv("REDDIT_USER_AGENT", "report-worker/1.0"),
		RedditPageSize:     getEnvInt("REDDIT_PAGE_SIZE", 100),
		RedditChannelPause: time.Duration(getEnvInt("REDDIT_CHANNEL_PAUSE_MS", 1000)) * time.Millisecond,
		Timezone:           getEnv("TIMEZONE", "UTC"),

		DataDir:           getEnv("DATA_DIR", "data"),
		RunLimit:          getEnvInt("RUN_LIMIT", 1000),
		FilterConcurrency: getEnvInt("FILTER_CONCURRENCY", 4),
		AgenciesFile:      getEnv("AGENCIES_FILE", ""),

		ReportStore:     strings.ToLower(getEnv("REPORT_STORE", StoreNone)),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		MongoDBURL:      getEnv("MONGODB_URL", ""),
		MongoDBName:     getEnv("MONGODB_DATABASE", "reports"),
		BigQueryProject: getEnv("BIGQUERY_PROJECT", "sundai-club-434220"),
		BigQueryDataset: getEnv("BIGQUERY_DATASET", "bostonreports"),
		BigQueryTable:   getEnv("BIGQUERY_TABLE", "boston-reports"),
		BigQueryRegion:  getEnv("BIGQUERY_LOCATION", "US"),
		GoogleCredsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		RedisURL:     getEnv("REDIS_URL", ""),
		TaskTTL:      time.Duration(getEnvInt("TASK_TTL_HOURS", 72)) * time.Hour,
		WorkerCount:  getEnvInt("WORKER_COUNT", 2),
		JobTimeout:   time.Duration(getEnvInt("JOB_TIMEOUT_MIN", 45)) * time.Minute,
		ScheduleSpec: getEnv("SCHEDULE_SPEC", "0 6 1 * *"),
		RunRateLimit: getEnvInt("RUN_RATE_LIMIT", 10),

		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}

	catalog, err := LoadCatalog(cfg.AgenciesFile)
	if err != nil {
		return nil, err
	}
	cfg.Catalog = catalog
	return cfg, nil
}

// Validate checks that everything the given mode needs is present.
func (c *Config) Validate(mode string) error {
	switch mode {
	case ModeAPI, ModeSchedule, ModeAll, ModeRun:
	default:
		return apperr.ConfigError(fmt.Sprintf("unknown mode %q", mode))
	}

	if c.OpenAIAPIKey == "" {
		return apperr.ConfigError("OPENAI_API_KEY is required")
	}
	if c.RedditClientID == "" || c.RedditClientSecret == "" {
		return apperr.ConfigError("REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET are required")
	}
	if c.FilterConcurrency < 1 {
		return apperr.ConfigError("FILTER_CONCURRENCY must be at least 1")
	}
	if c.WorkerCount < 1 {
		return apperr.ConfigError("WORKER_COUNT must be at least 1")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return apperr.ConfigError(fmt.Sprintf("invalid TIMEZONE %q", c.Timezone))
	}
	if c.Catalog == nil || len(c.Catalog.Channels) == 0 {
		return apperr.ConfigError("at least one channel is required")
	}
	if (mode == ModeSchedule || mode == ModeAll) && len(c.Catalog.Agencies) == 0 {
		return apperr.ConfigError("scheduling needs at least one agency")
	}

	switch c.ReportStore {
	case StoreNone:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return apperr.ConfigError("DATABASE_URL is required for the postgres report store")
		}
	case StoreMongo:
		if c.MongoDBURL == "" {
			return apperr.ConfigError("MONGODB_URL is required for the mongo report store")
		}
	case StoreBigQuery:
		if c.BigQueryProject == "" || c.BigQueryDataset == "" || c.BigQueryTable == "" {
			return apperr.ConfigError("BIGQUERY_PROJECT, BIGQUERY_DATASET and BIGQUERY_TABLE are required")
		}
	default:
		return apperr.ConfigError(fmt.Sprintf("unknown REPORT_STORE %q", c.ReportStore))
	}
	return nil
}

// Location returns the configured timezone, UTC when invalid.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
