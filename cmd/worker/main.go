package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"folioforge/internal/assets"
	"folioforge/internal/config"
	"folioforge/internal/database"
	"folioforge/internal/documents"
	"folioforge/internal/export"
	"folioforge/internal/metrics"
	"folioforge/internal/pdf"
	"folioforge/internal/render"
	"folioforge/internal/storage"
	"folioforge/internal/tasks"
	"folioforge/internal/worker"
)

const metricsPort = 9091

func main() {
	cfg := config.MustLoad()

	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	logger.Info("database connection ready for worker")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	redisAddr := cfg.Redis.Addr()
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	dispatcher, err := render.NewDispatcher()
	if err != nil {
		log.Fatalf("init templates: %v", err)
	}
	launcher := pdf.NewLauncher(
		pdf.WithBin(cfg.Export.ChromiumBin),
		pdf.WithTimeout(cfg.Export.Timeout),
		pdf.WithLogger(logger),
	)
	store := documents.NewStore(db)
	exporter := export.NewExporter(dispatcher, pdf.NewPrinter(launcher), pdf.NewStamper(), logger)
	exports := export.NewService(store, exporter, assets.NewInliner(storageClient, logger), cfg.Export.WatermarkText)

	server := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
		// 每个任务独占一个 Chromium 进程
		Concurrency: 4,
	})

	exportHandler := worker.NewExportTaskHandler(exports, store, storageClient, worker.NewRedisNotifier(redisClient), logger)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeDocumentExport, exportHandler)

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", metricsPort),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker metrics server stopped", slog.Any("error", err))
		}
	}()

	if err := server.Start(mux); err != nil {
		log.Fatalf("start worker server: %v", err)
	}
	logger.Info("worker service started", slog.String("redis_addr", redisAddr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down worker")
	server.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}
