// Package bootstrap wires configuration into running components.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"report_worker/adapter/in/http"
	"report_worker/adapter/out/artifact"
	"report_worker/adapter/out/mongodb"
	"report_worker/adapter/out/persistence"
	"report_worker/adapter/out/reddit"
	"report_worker/adapter/out/taskstore"
	"report_worker/adapter/out/warehouse"
	"report_worker/config"
	"report_worker/core/agent/llm"
	"report_worker/core/agent/parse"
	"report_worker/core/port/out"
	"report_worker/core/service/filter"
	"report_worker/core/service/report"
	"report_worker/core/service/run"
	"report_worker/infra/database"
	"report_worker/pkg/cache"
	"report_worker/pkg/logger"
	"report_worker/pkg/metrics"
	"report_worker/pkg/resilience"
)

type Dependencies struct {
	Config *config.Config
	Log    zerolog.Logger

	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	LLMClient  *llm.Client
	Reports    out.ReportRepository
	Tasks      out.TaskStore
	RunService *run.Service
	Latency    *metrics.LatencyRegistry

	// Health checks for /ready, keyed by dependency name.
	Checks map[string]http.HealthChecker
}

// NewDependencies opens every configured backend and builds the run service.
// The returned cleanup closes what was opened, in reverse order.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	deps := &Dependencies{
		Config:  cfg,
		Log:     logger.Component("bootstrap"),
		Checks:  make(map[string]http.HealthChecker),
		Latency: metrics.NewLatencyRegistry(200),
	}

	if err := deps.openReportStore(ctx, &cleanups); err != nil {
		cleanup()
		return nil, nil, err
	}

	if cfg.RedisURL != "" {
		client, err := database.NewRedis(ctx, cfg.RedisURL, database.DefaultRedisConfig())
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		cleanups = append(cleanups, func() { client.Close() })
		deps.Redis = client

		redisCache := cache.NewRedisCache(client)
		deps.Tasks = taskstore.NewRedisStore(redisCache, cfg.TaskTTL)
		deps.Checks["redis"] = redisCache
		deps.Log.Info().Dur("ttl", cfg.TaskTTL).Msg("task state kept in redis")
	} else {
		deps.Tasks = taskstore.NewMemoryStore()
		deps.Log.Info().Msg("task state kept in memory")
	}

	svc, err := deps.newRunService()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.RunService = svc

	return deps, cleanup, nil
}

func (d *Dependencies) openReportStore(ctx context.Context, cleanups *[]func()) error {
	cfg := d.Config

	switch cfg.ReportStore {
	case config.StorePostgres:
		db, err := database.NewPostgres(ctx, cfg.DatabaseURL, database.DefaultPostgresConfig())
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		*cleanups = append(*cleanups, func() { db.Close() })
		d.SQLDB = db

		adapter := persistence.NewReportAdapter(db)
		if err := adapter.EnsureSchema(ctx); err != nil {
			return err
		}
		d.Reports = adapter
		d.Checks["postgres"] = http.CheckFunc(db.PingContext)

	case config.StoreMongo:
		client, err := mongodb.NewClient(ctx, cfg.MongoDBURL)
		if err != nil {
			return err
		}
		*cleanups = append(*cleanups, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		})
		d.MongoDB = client

		adapter := mongodb.NewReportAdapter(client.Database(cfg.MongoDBName))
		if err := adapter.EnsureIndexes(ctx); err != nil {
			d.Log.Warn().Err(err).Msg("failed to create report indexes")
		}
		d.Reports = adapter
		d.Checks["mongodb"] = http.CheckFunc(func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		})

	case config.StoreBigQuery:
		breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("bigquery"), d.Log)
		adapter, err := warehouse.NewBigQueryAdapter(ctx, warehouse.Config{
			ProjectID:       cfg.BigQueryProject,
			Dataset:         cfg.BigQueryDataset,
			Table:           cfg.BigQueryTable,
			Location:        cfg.BigQueryRegion,
			CredentialsFile: cfg.GoogleCredsFile,
		}, breaker, logger.Component("warehouse"))
		if err != nil {
			return err
		}
		d.Reports = adapter

	default:
		d.Log.Info().Msg("report store disabled")
	}
	return nil
}

func (d *Dependencies) newRunService() (*run.Service, error) {
	cfg := d.Config

	llmBreaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("openai"), d.Log)
	d.LLMClient = llm.NewClientWithConfig(llm.ClientConfig{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		BaseURL:     cfg.OpenAIBaseURL,
	}, llmBreaker, logger.Component("llm"))

	redditCfg := reddit.DefaultConfig()
	redditCfg.ClientID = cfg.RedditClientID
	redditCfg.ClientSecret = cfg.RedditClientSecret
	redditCfg.UserAgent = cfg.RedditUserAgent
	redditCfg.PageSize = cfg.RedditPageSize
	redditCfg.ChannelPause = cfg.RedditChannelPause
	redditCfg.Location = cfg.Location()
	redditBreaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("reddit"), d.Log)
	fetcher := reddit.NewClient(redditCfg, redditBreaker, logger.Component("reddit"))

	artifacts, err := artifact.NewFileStore(cfg.DataDir, logger.Component("artifacts"))
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}

	parser := parse.NewFenceParser()
	classifier := filter.NewClassifier(d.LLMClient, parser, logger.Component("classifier"))

	return run.NewService(run.Deps{
		Fetcher:     fetcher,
		Artifacts:   artifacts,
		Reports:     d.Reports,
		Metadata:    report.NewMetadataGenerator(d.LLMClient, parser, logger.Component("metadata")),
		Filter:      filter.NewPipeline(classifier, filter.Config{Concurrency: cfg.FilterConcurrency}, logger.Component("filter")),
		Synthesizer: report.NewSynthesizer(d.LLMClient, logger.Component("synthesizer")),
		Latency:     d.Latency,
	}, run.Config{
		Channels: cfg.Catalog.Channels,
		Limit:    cfg.RunLimit,
		Profiles: cfg.Catalog.Profiles(),
	}, logger.Component("run")), nil
}
