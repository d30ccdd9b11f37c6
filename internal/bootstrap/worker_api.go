package bootstrap

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"report_worker/adapter/in/http"
	"report_worker/config"
	"report_worker/infra/middleware"
	"report_worker/pkg/metrics"
	"report_worker/pkg/ratelimit"
)

// NewAPI builds the fiber app over the run service and the worker's task queue.
func NewAPI(cfg *config.Config, deps *Dependencies, w *Worker) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),

		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit: 1 * 1024 * 1024,
	})

	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	if allowOrigins == "" {
		allowOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  allowOrigins,
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,X-Request-ID",
		ExposeHeaders: "X-Request-ID,Retry-After",
		MaxAge:        86400,
	}))

	var submitMiddleware []fiber.Handler
	if deps.Redis != nil && cfg.RunRateLimit > 0 {
		limiter := ratelimit.NewSlidingWindowLimiter(deps.Redis, cfg.RunRateLimit, time.Minute)
		submitMiddleware = append(submitMiddleware, middleware.RateLimit(limiter))
	}

	http.NewHealthHandler(deps.Checks).Register(app)
	http.NewMetricsHandler(metricSources(deps, w)).Register(app)
	http.NewRunHandler(w.Dispatcher, submitMiddleware...).Register(app)
	http.NewReportHandler(deps.RunService).Register(app)

	return app
}

func metricSources(deps *Dependencies, w *Worker) map[string]http.MetricsSource {
	sources := map[string]http.MetricsSource{
		"pool": func() any { return w.Dispatcher.Metrics() },
		"llm":  func() any { return deps.LLMClient.Usage().Stats() },
		"stages": func() any {
			all := deps.Latency.AllStats()
			out := make(map[string]any, len(all))
			for name, s := range all {
				out[name] = s.ToMap()
			}
			return out
		},
	}
	if deps.SQLDB != nil {
		sources["postgres"] = func() any { return metrics.DBPoolStats(deps.SQLDB.DB) }
	}
	return sources
}
