package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "narrative-safety/docs" // This is for Swagger
	"narrative-safety/internal/auth"
	"narrative-safety/internal/config"
	"narrative-safety/internal/database"
	"narrative-safety/internal/email"
	"narrative-safety/internal/handlers"
	"narrative-safety/internal/logger"
	"narrative-safety/internal/metrics"
	"narrative-safety/internal/middleware"
	"narrative-safety/internal/models"
	"narrative-safety/internal/repository"
	"narrative-safety/internal/scheduler"
	"narrative-safety/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Narrative Safety API
// @version 1.0
// @description Safety gate between report generation and delivery for the health coaching platform

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// auditStore is satisfied by both audit repositories
type auditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, filter repository.AuditFilter) ([]models.AuditLog, error)
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(logger.Config{Level: cfg.Log.Level})
	slog.Info("Starting service",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"env", cfg.App.Env,
		"log_level", logger.GetLevel(cfg.Log.Level))

	startCtx, cancelStart := getContext(60 * time.Second)
	defer cancelStart()

	// Initialize database
	var db *database.Database
	if cfg.UsesPostgres() {
		db, err = database.New(startCtx, &cfg.Database)
		if err != nil {
			fatal("Failed to connect to database", err)
		}
		slog.Info("Database connection established")

		if err := db.Migrate(startCtx, cfg.Database.MigrationsPath); err != nil {
			fatal("Failed to run migrations", err)
		}
		slog.Info("Database migrations completed")
	}

	// Initialize repositories
	st := newStores(cfg, db)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipelineMetrics := metrics.New(registry)

	// Initialize services
	judge, err := newHarmJudge(&cfg.Judge, pipelineMetrics)
	if err != nil {
		fatal("Failed to initialize harm judge", err)
	}

	validatorOpts := []service.ValidatorOption{service.WithValidatorMetrics(pipelineMetrics)}
	if cfg.Vault.Enabled {
		signer, err := newReceiptSigner(startCtx, &cfg.Vault)
		if err != nil {
			fatal("Failed to initialize receipt signer", err)
		}
		validatorOpts = append(validatorOpts, service.WithReceiptSigner(signer))
		slog.Info("Receipt signing enabled", "key", cfg.Vault.SigningKey)
	}
	constitutional := service.NewConstitutionalValidator(st.receipts, validatorOpts...)

	sinks, closeSinks, err := newArchiveSinks(startCtx, &cfg.Receipts)
	if err != nil {
		fatal("Failed to initialize receipt archive", err)
	}
	defer closeSinks()
	exporter := service.NewReceiptExportService(st.receipts, sinks, pipelineMetrics)

	var alerter service.Alerter = email.LogAlerter{}
	var digest scheduler.DigestSender
	if cfg.Email.Enabled() {
		emailService := email.NewService(&cfg.Email, cfg.App.DashboardURL)
		alerter = emailService
		digest = emailService
		slog.Info("Reviewer email notifications enabled", "smtp_host", cfg.Email.SMTPHost)
	}

	queue := service.NewReviewQueueService(st.reviews, judge, alerter, pipelineMetrics)
	pipeline := service.NewReportPipeline(constitutional, queue)

	// Initialize scheduler
	var scheduledExport scheduler.ReceiptExporter
	if len(sinks) > 0 {
		scheduledExport = exporter
	}
	sched := scheduler.NewScheduler(queue, digest, scheduledExport, &cfg.Scheduler, &cfg.Receipts)
	if err := sched.Start(); err != nil {
		fatal("Failed to start scheduler", err)
	}

	// Initialize middleware
	tokenValidator, err := auth.NewService(&cfg.JWT)
	if err != nil {
		fatal("Failed to initialize token validator", err)
	}
	authMw := middleware.NewAuthMiddleware(tokenValidator)
	corsMw := middleware.NewCORSMiddleware(&cfg.CORS)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)
	auditMw := middleware.NewAuditMiddleware(st.audit)

	// Initialize handlers
	var healthChecker handlers.HealthChecker
	if db != nil {
		healthChecker = db
	}
	healthHandler := handlers.NewHealthHandler(cfg.App.Version, healthChecker)
	reportHandler := handlers.NewReportHandler(pipeline)
	reviewHandler := handlers.NewReviewHandler(queue, pipeline, cfg.Review.PageSize)
	receiptHandler := handlers.NewReceiptHandler(constitutional, exporter)
	auditHandler := handlers.NewAuditHandler(st.audit)

	// Setup router
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET "+handlers.APIBasePath+"/health", healthHandler.Health)

	// Report submission
	mux.Handle("POST "+handlers.APIBasePath+"/reports",
		authMw.Authenticate(
			auditMw.Log(handlers.AuditActionReportSubmit, "reports")(
				http.HandlerFunc(reportHandler.SubmitReport),
			),
		),
	)

	// Reviewer routes
	reviewer := func(action string, h http.HandlerFunc) http.Handler {
		return authMw.Authenticate(
			middleware.RequireAnyRole("reviewer", service.RoleAdmin)(
				auditMw.Log(action, "reviews")(h),
			),
		)
	}
	mux.Handle("GET "+handlers.AdminBasePath+"/reviews/pending", reviewer(handlers.AuditActionReviewView, reviewHandler.ListPending))
	mux.Handle("GET "+handlers.AdminBasePath+"/reviews/stats", reviewer(handlers.AuditActionReviewView, reviewHandler.Stats))
	mux.Handle("GET "+handlers.AdminBasePath+"/reviews/{id}", reviewer(handlers.AuditActionReviewView, reviewHandler.GetReview))
	mux.Handle("POST "+handlers.AdminBasePath+"/reviews/{id}/decision", reviewer(handlers.AuditActionReviewDecide, reviewHandler.Decide))

	// Admin routes
	admin := func(action, resourceType string, h http.HandlerFunc) http.Handler {
		return authMw.Authenticate(
			middleware.RequireRole(service.RoleAdmin)(
				auditMw.Log(action, resourceType)(h),
			),
		)
	}
	mux.Handle("GET "+handlers.AdminBasePath+"/receipts", admin(handlers.AuditActionReceiptsList, "receipts", receiptHandler.ListReceipts))
	mux.Handle("POST "+handlers.AdminBasePath+"/receipts/export", admin(handlers.AuditActionReceiptsExport, "receipts", receiptHandler.ExportReceipts))
	mux.Handle("GET "+handlers.AdminBasePath+"/audit-logs", admin(handlers.AuditActionAuditList, "audit-logs", auditHandler.ListAuditLogs))

	// Metrics
	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}

	// Swagger documentation
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	// Apply global middleware
	handler := middleware.RequestID(
		middleware.LoggingMiddleware(
			middleware.SecurityHeaders(
				corsMw.Handler(
					rateLimiter.Limit(mux),
				),
			),
		),
	)

	// Create server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("Shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("Server failed", "error", err)
	}

	slog.Info("Server shutting down")

	// Graceful shutdown with timeout
	ctx, cancel := getContext(30 * time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	sched.Stop()
	rateLimiter.Close()
	if db != nil {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}

	slog.Info("Server stopped")
}
