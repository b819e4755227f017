package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	boletohandler "github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/handler"
	boletorepo "github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/repository"
	boletoservice "github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/service"

	"github.com/FACorreiaa/boleto-drafts/pkg/config"
	"github.com/FACorreiaa/boleto-drafts/pkg/cron"
	"github.com/FACorreiaa/boleto-drafts/pkg/db"
	"github.com/FACorreiaa/boleto-drafts/pkg/metrics"
	"github.com/FACorreiaa/boleto-drafts/pkg/pdftext"
	"github.com/FACorreiaa/boleto-drafts/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	DB      *db.DB
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Repositories
	DraftRepo boletorepo.DraftRepository

	// Services
	FileStorage   storage.Storage
	BoletoService *boletoservice.BoletoService
	Scheduler     *cron.Scheduler

	// Handlers
	BoletoHandler *boletohandler.BoletoHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = metrics.New()
	}

	// Initialize database
	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	// Initialize repositories
	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	// Initialize services
	if err := deps.initServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	// Initialize handlers
	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        int32(d.Config.Database.MaxConns),
		MinConns:        int32(d.Config.Database.MinConns),
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	// Run migrations
	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.DraftRepo = boletorepo.NewPostgresDraftRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices(ctx context.Context) error {
	// File storage for imported PDFs (defaults to local storage)
	fileStorage, err := storage.New(ctx, &d.Config.Storage)
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}
	d.FileStorage = fileStorage

	d.BoletoService = boletoservice.NewBoletoService(d.DraftRepo, d.Logger).
		WithPDFReader(pdftext.New(d.Logger)).
		WithMetrics(d.Metrics).
		WithMaxUploadBytes(d.Config.Server.MaxUploadBytes)
	if fileStorage != nil {
		d.BoletoService.WithStorage(fileStorage)
	}

	// Stale draft purge
	d.Scheduler = cron.NewScheduler(
		d.BoletoService,
		d.Config.Drafts.PurgeSchedule,
		d.Config.Drafts.Retention(),
		d.Logger,
	)

	d.Logger.Info("services initialized",
		slog.String("storage", string(d.Config.Storage.Type)),
	)
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.BoletoHandler = boletohandler.NewBoletoHandler(d.BoletoService, d.Logger)

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
