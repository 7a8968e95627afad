package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/report-ivr/cmd/mainconfig"
	"github.com/wolfman30/report-ivr/internal/api/router"
	"github.com/wolfman30/report-ivr/internal/app/bootstrap"
	"github.com/wolfman30/report-ivr/internal/callers"
	"github.com/wolfman30/report-ivr/internal/calls"
	appconfig "github.com/wolfman30/report-ivr/internal/config"
	"github.com/wolfman30/report-ivr/internal/dialog"
	"github.com/wolfman30/report-ivr/internal/http/handlers"
	"github.com/wolfman30/report-ivr/internal/observability/metrics"
	"github.com/wolfman30/report-ivr/internal/reports"
	"github.com/wolfman30/report-ivr/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting report IVR server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}
	sqlDB := openSQLDB(pool)
	if sqlDB != nil {
		defer func() { _ = sqlDB.Close() }()
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	metricsHandler, callMetrics := setupMetrics()

	callRouter, err := buildCallRouter(ctx, cfg, pool, sqlDB, redisClient, callMetrics, logger)
	if err != nil {
		logger.Error("failed to build call router", "error", err)
		os.Exit(1)
	}
	go callRouter.Run(ctx, cfg.SessionSweepInterval)

	sqsClient, err := mainconfig.NewSQSClient(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	if deliverer := bootstrap.BuildOutboxDeliverer(pool, sqsClient, cfg, logger); deliverer != nil {
		go deliverer.Start(ctx)
	}

	routerCfg := &router.Config{
		Logger: logger,
		CarrierWebhook: handlers.NewCarrierWebhookHandler(handlers.CarrierWebhookConfig{
			Router:  callRouter,
			Metrics: callMetrics,
			Logger:  logger,
		}),
		MetricsHandler:       metricsHandler,
		Sessions:             callRouter,
		CarrierWebhookSecret: cfg.CarrierWebhookSecret,
		WebhookRateLimit:     cfg.WebhookRateLimit,
		WebhookRateBurst:     cfg.WebhookRateBurst,
	}
	if pool != nil {
		routerCfg.Database = pool
	}
	if cfg.CarrierWebhookSecret == "" {
		logger.Warn("CARRIER_WEBHOOK_SECRET not set, carrier webhook is unauthenticated")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (http.Handler, *metrics.CallMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewCallMetrics(reg)
}

func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(databaseURL) == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		os.Exit(1)
	}
	return pool
}

// openSQLDB exposes the pool through database/sql for the lib/pq based history reader.
func openSQLDB(pool *pgxpool.Pool) *sql.DB {
	if pool == nil {
		return nil
	}
	return stdlib.OpenDBFromPool(pool)
}

func buildCallRouter(
	ctx context.Context,
	cfg *appconfig.Config,
	pool *pgxpool.Pool,
	sqlDB *sql.DB,
	redisClient *redis.Client,
	callMetrics *metrics.CallMetrics,
	logger *logging.Logger,
) (*calls.Router, error) {
	loc := cfg.Location()
	content, err := bootstrap.BuildContent(ctx, pool, time.Now().In(loc), logger)
	if err != nil {
		return nil, err
	}

	var (
		directory callers.Directory
		sink      reports.Sink
		history   reports.HistoryReader
	)
	if pool != nil {
		directory = callers.NewPostgresDirectory(pool)
		sink = reports.NewPostgresSink(pool, logger)
	} else {
		logger.Warn("no database configured, reports are kept in memory and no caller is registered")
		memory := reports.NewMemorySink()
		directory = callers.NewMemoryDirectory(nil)
		sink = memory
		history = memory
	}
	if sqlDB != nil {
		history = reports.NewHistory(sqlDB)
	}

	return calls.NewRouter(calls.Config{
		Machine: dialog.NewMachine(dialog.Config{
			SkipCode:    cfg.SkipCode,
			YesCode:     cfg.YesCode,
			NoCode:      cfg.NoCode,
			EchoAnswers: cfg.EchoAnswers,
		}),
		Catalog:            content.Catalog,
		Questions:          content.Questions,
		Callers:            directory,
		Sink:               sink,
		History:            history,
		CallLog:            bootstrap.BuildCallLog(redisClient),
		Metrics:            callMetrics,
		Logger:             logger,
		IdleTimeout:        cfg.SessionIdleTimeout,
		EndedRetention:     cfg.EndedCallRetention,
		MaxInvalidAttempts: cfg.MaxInvalidAttempts,
		Location:           loc,
	})
}
