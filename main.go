package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"

	"report_worker/config"
	"report_worker/core/domain"
	"report_worker/internal/bootstrap"
	"report_worker/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file if exists (for local development)
	envErr := godotenv.Load()

	mode := flag.String("mode", config.ModeAll, "Run mode: api, schedule, all, run")
	agency := flag.String("agency", "", "Agency to report on (run mode)")
	month := flag.Int("month", 0, "Report month 1-12 (run mode)")
	year := flag.Int("year", 0, "Report year (run mode)")
	limit := flag.Int("limit", 0, "Posts checked per channel, 0 for the configured default (run mode)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level := logger.ParseLevel(cfg.LogLevel)
	if cfg.LogLevel == "" && cfg.IsDevelopment() {
		level = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   level,
		Service: "report-worker",
		Console: cfg.IsDevelopment(),
	})
	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	if err := cfg.Validate(*mode); err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies: %v", err)
	}

	var code int
	if *mode == config.ModeRun {
		code = runOnce(ctx, deps, domain.RunRequest{Agency: *agency, Month: *month, Year: *year, Limit: *limit})
	} else {
		code = serve(ctx, cfg, deps, *mode)
	}

	logUsage(deps)
	cleanup()
	stop()
	os.Exit(code)
}

// runOnce executes a single run in the foreground and prints the result.
func runOnce(ctx context.Context, deps *bootstrap.Dependencies, req domain.RunRequest) int {
	start := time.Now()
	result, err := deps.RunService.Run(ctx, req)
	if err != nil {
		logger.WithError(err).WithDuration(time.Since(start)).Error("Run failed for %s", req.Agency)
		return 1
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.WithError(err).Error("Failed to encode result")
		return 1
	}
	fmt.Println(string(out))
	logger.WithDuration(time.Since(start)).Info("Run finished for %s", req.Agency)
	return 0
}

// serve starts the worker and, unless mode is schedule, the HTTP API, then
// blocks until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, deps *bootstrap.Dependencies, mode string) int {
	scheduled := mode == config.ModeSchedule || mode == config.ModeAll
	w, err := bootstrap.NewWorker(cfg, deps, scheduled)
	if err != nil {
		logger.Error("Failed to initialize worker: %v", err)
		return 1
	}
	if err := w.Start(); err != nil {
		logger.Error("Failed to start worker: %v", err)
		return 1
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		w.Stop(stopCtx)
	}()

	if mode == config.ModeSchedule {
		logger.Info("Scheduler running with spec %q", cfg.ScheduleSpec)
		<-ctx.Done()
		logger.Info("Shutting down scheduler...")
		return 0
	}

	app := bootstrap.NewAPI(cfg, deps, w)

	listenErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("Starting API server on %s", addr)
		listenErr <- app.Listen(addr)
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			logger.Error("Failed to start server: %v", err)
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("Error shutting down: %v", err)
		return 1
	}
	logger.Info("API server shut down gracefully")
	return 0
}

func logUsage(deps *bootstrap.Dependencies) {
	if deps.LLMClient == nil {
		return
	}
	stats := deps.LLMClient.Usage().Stats()
	if stats.RequestCount == 0 {
		return
	}
	logger.WithFields(map[string]any{
		"requests":     stats.RequestCount,
		"total_tokens": stats.TotalTokens,
		"total_cost":   stats.TotalCost,
	}).Info("LLM usage")
}
