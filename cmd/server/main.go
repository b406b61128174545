package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/fourvoice/billing-backend/internal/application/service"
	"github.com/fourvoice/billing-backend/internal/config"
	"github.com/fourvoice/billing-backend/internal/infrastructure/external/openai"
	"github.com/fourvoice/billing-backend/internal/infrastructure/external/webhook"
	"github.com/fourvoice/billing-backend/internal/infrastructure/persistence/repository"
	"github.com/fourvoice/billing-backend/internal/infrastructure/persistence/sqlite"
	httpserver "github.com/fourvoice/billing-backend/internal/interfaces/http"
	"github.com/fourvoice/billing-backend/pkg/utils"
)

func main() {
	// Local overrides; missing .env is fine
	_ = gotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting billing backend",
		zap.Int("port", cfg.Server.Port),
		zap.Bool("ai_enabled", cfg.OpenAI.APIKey != ""))

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err))
	}
	if err := os.MkdirAll(cfg.Server.UploadDir, 0755); err != nil {
		logger.Fatal("Failed to create upload directory", zap.Error(err))
	}

	db, err := sqlite.New(sqlite.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := sqlite.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	invoiceRepo := repository.NewInvoiceRepository(db.DB, logger)
	itemRepo := repository.NewItemRepository(db.DB, logger)
	clientRepo := repository.NewClientRepository(db.DB, logger)
	historyRepo := repository.NewHistoryRepository(db.DB, logger)

	// External collaborators
	adviser := openai.NewAdviser(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Temperature, cfg.OpenAI.Timeout, logger)
	extractor := openai.NewExtractor(cfg.OpenAI.APIKey, cfg.OpenAI.VisionModel, cfg.OpenAI.Timeout, logger)
	monitor := webhook.NewMonitor(cfg.Delivery.WebhookEnabled, cfg.Delivery.HealthURL,
		cfg.Delivery.ProbeTimeout, cfg.Delivery.StateTTL, logger)

	// Application services
	serviceLogger := utils.NewKVLogger(logger)
	reviewCache := service.NewReviewCache()
	approvalService := service.NewApprovalService(invoiceRepo, itemRepo, historyRepo, db, adviser, reviewCache, serviceLogger)
	reeditService := service.NewReeditService(invoiceRepo, itemRepo, historyRepo, db, adviser, reviewCache, serviceLogger)
	invoiceService := service.NewInvoiceService(invoiceRepo, itemRepo, clientRepo, historyRepo, db, extractor, serviceLogger)
	deliveryService := service.NewDeliveryService(invoiceRepo, monitor, serviceLogger)
	exportService := service.NewExportService(invoiceRepo, itemRepo, serviceLogger)

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		UploadDir:    cfg.Server.UploadDir,
	}, approvalService, reeditService, invoiceService, deliveryService, exportService, serviceLogger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case sig := <-quit:
		logger.Info("Shutting down", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", zap.Error(err))
		}
	}

	logger.Info("Server stopped")
}
