package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nexhr/sales-api/docs"
	"github.com/nexhr/sales-api/internal/auth"
	"github.com/nexhr/sales-api/internal/config"
	"github.com/nexhr/sales-api/internal/database"
	"github.com/nexhr/sales-api/internal/http/handler"
	"github.com/nexhr/sales-api/internal/http/middleware"
	"github.com/nexhr/sales-api/internal/http/router"
	"github.com/nexhr/sales-api/internal/jobs"
	"github.com/nexhr/sales-api/internal/logger"
	"github.com/nexhr/sales-api/internal/repository"
	"github.com/nexhr/sales-api/internal/service"
	"go.uber.org/zap"
)

// @title NexHR Sales API
// @version 1.0
// @description Sales pipeline API for lead management, payment tracking, and conversion to customers and projects

// @contact.name API Support
// @contact.email support@nexhr.io

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(&cfg.Logging, &cfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Environment),
		zap.Int("port", cfg.App.Port),
	)

	// Configure Swagger host based on environment
	if cfg.App.Environment == "development" {
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", cfg.App.Port)
	}

	// Connect to database with retry logic
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize repositories
	leadRepo := repository.NewLeadRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	milestoneRepo := repository.NewMilestoneRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Initialize services
	// All lead mutations share one lock set so ledger writes and conversion
	// never interleave on the same lead.
	locks := service.NewLeadLocker()
	conversionService := service.NewConversionService(leadRepo, customerRepo, projectRepo, activityRepo, locks, log, db)
	leadService := service.NewLeadService(leadRepo, customerRepo, activityRepo, milestoneRepo, conversionService, locks, log, db)
	ledgerService := service.NewLedgerService(leadRepo, milestoneRepo, paymentRepo, activityRepo, conversionService, locks, log, db)

	// Initialize middleware
	authMiddleware := auth.NewMiddleware(cfg, userRepo, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Initialize handlers
	leadHandler := handler.NewLeadHandler(leadService, conversionService, log)
	paymentHandler := handler.NewPaymentHandler(ledgerService, log)
	salesHandler := handler.NewSalesHandler(leadService, log)

	// Setup router
	rt := router.NewRouter(
		cfg,
		log,
		db,
		authMiddleware,
		rateLimiter,
		leadHandler,
		paymentHandler,
		salesHandler,
	)

	// Initialize and start scheduler for background jobs
	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(log)

		if err := jobs.RegisterOverdueMilestonesJob(
			scheduler,
			ledgerService,
			log,
			cfg.Jobs.OverdueMilestonesCron,
		); err != nil {
			log.Error("Failed to register overdue milestone job", zap.Error(err))
		} else {
			scheduler.Start()
			log.Info("Scheduler started with overdue milestone sweep",
				zap.String("cron_expr", cfg.Jobs.OverdueMilestonesCron),
			)
		}
	} else {
		log.Info("Background jobs disabled")
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Stop scheduler if running
		if scheduler != nil {
			ctx := scheduler.Stop()
			<-ctx.Done()
			log.Info("Scheduler stopped")
		}

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
