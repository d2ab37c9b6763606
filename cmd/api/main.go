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
	"github.com/redis/go-redis/v9"

	"folioforge/internal/admin"
	"folioforge/internal/ai"
	"folioforge/internal/api"
	"folioforge/internal/assets"
	"folioforge/internal/ats"
	"folioforge/internal/auth"
	"folioforge/internal/config"
	"folioforge/internal/credits"
	"folioforge/internal/database"
	"folioforge/internal/documents"
	"folioforge/internal/export"
	"folioforge/internal/payments"
	"folioforge/internal/pdf"
	"folioforge/internal/render"
	"folioforge/internal/storage"
)

func main() {
	cfg := config.MustLoad()
	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	logger.Info("database ready",
		slog.String("host", cfg.Database.Host),
		slog.Int("port", cfg.Database.Port),
		slog.String("db", cfg.Database.Name),
	)

	authService, err := auth.NewAuthServiceFromFiles(
		cfg.Auth.PrivateKeyPath,
		cfg.Auth.PublicKeyPath,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error("close asynq client failed", slog.Any("error", err))
		}
	}()

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
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

	creditService := credits.NewService(db)
	var analyzer *ats.Analyzer
	if cfg.AI.Enabled() {
		completer := ai.NewClient(ai.Options{
			BaseURL:   cfg.AI.BaseURL,
			APIKey:    cfg.AI.APIKey,
			Model:     cfg.AI.Model,
			MaxTokens: cfg.AI.MaxTokens,
			Timeout:   cfg.AI.Timeout,
		})
		analyzer = ats.NewAnalyzer(completer, creditService, cfg.Credits.ATSCost, logger)
	} else {
		logger.Warn("ANTHROPIC_API_KEY not set, ats analysis disabled")
	}

	if cfg.Payments.WebhookSecret == "" {
		logger.Warn("PAYMENT_WEBHOOK_SECRET not set, payment webhooks will be rejected")
	}

	var scanner assets.Scanner
	if cfg.ClamAV.Addr != "" {
		scanner = assets.NewClamdScanner(cfg.ClamAV.Addr)
	}

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, api.Deps{
		Config:    cfg,
		DB:        db,
		Auth:      authService,
		Redis:     redisClient,
		Queue:     asynqClient,
		Objects:   storageClient,
		Scanner:   scanner,
		Documents: store,
		Exports:   exports,
		Analyzer:  analyzer,
		Credits:   creditService,
		Payments:  payments.NewProcessor(db, cfg.Payments.WebhookSecret, logger),
		Admin:     admin.NewService(db),
		Logger:    logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("api listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server stopped", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
}
