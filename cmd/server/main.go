package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/dualtrack/be-acq-requests/internal/client"
	"github.com/dualtrack/be-acq-requests/internal/config"
	"github.com/dualtrack/be-acq-requests/internal/database"
	"github.com/dualtrack/be-acq-requests/internal/handler"
	"github.com/dualtrack/be-acq-requests/internal/repository"
	"github.com/dualtrack/be-acq-requests/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	level, err := zerolog.ParseLevel(cfg.Service.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Logger()

	log.Info().
		Str("environment", cfg.Service.Environment).
		Msg("Starting Acquisition Requests Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// NATS is optional: without it the service runs with notifications off.
	var nc *nats.Conn
	if cfg.NATS.Enabled && cfg.NATS.URL != "" {
		nc, err = nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.Service.Name),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("NATS unavailable, notifications disabled")
			nc = nil
		} else {
			defer nc.Drain()
			log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
		}
	}
	notifier := client.NewNotificationPublisher(nc, log)

	// Initialize repositories
	requestRepo := repository.NewRequestRepository(db)
	stepRepo := repository.NewApprovalStepRepository(db)
	advisoryRepo := repository.NewAdvisoryInputRepository(db)
	documentRepo := repository.NewPackageDocumentRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	ruleSetRepo := repository.NewRuleSetRepository(db)
	templateRepo := repository.NewApprovalTemplateRepository(db)
	ruleAdminRepo := repository.NewRuleAdminRepository(db)

	// Initialize services
	intakeService := service.NewIntakeService(db, requestRepo, documentRepo, advisoryRepo, activityRepo, ruleSetRepo, notifier, log)
	workflowService := service.NewWorkflowService(db, requestRepo, stepRepo, advisoryRepo, documentRepo, activityRepo, ruleSetRepo, notifier, log)
	requestService := service.NewRequestService(db, requestRepo, stepRepo, advisoryRepo, documentRepo, activityRepo, log)
	advisoryService := service.NewAdvisoryService(db, requestRepo, advisoryRepo, activityRepo, notifier, log)
	rulesService := service.NewRulesService(templateRepo, ruleAdminRepo, ruleSetRepo, log)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(intakeService, workflowService, requestService, advisoryService, rulesService, log)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	var h http.Handler = mux
	h = handler.Logger(log)(h)
	h = handler.Recovery(log)(h)
	h = handler.RequestID(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
