package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/api"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/export"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/services"
	"fintrack/internal/session"
	"fintrack/internal/store"
	"fintrack/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger(os.Stdout, "info", true).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(os.Stdout, cfg.LogLevel, true)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	startCtx := context.Background()

	sessionsBackend, err := cli.InitSessionStore(startCtx, logger, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sessionsBackend.Cleanup(); err != nil {
			logger.Error("Failed to close session store", log.FieldError, err)
		}
	}()

	sessions := session.NewManager(sessionsBackend.Store, session.ManagerConfig{
		CookieName: cfg.SessionCookieName,
		Secure:     cfg.SessionCookieSecure,
		TTL:        cfg.SessionTTL,
	}, logger)
	policy := session.NewPolicy(sessions, cfg.SessionVerifyInterval, logger)

	client := api.NewClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.APITimeout}, logger)
	policy.Attach(client)

	hostname, _ := os.Hostname()
	shared := store.New(store.Config{
		TTL:        cfg.CacheTTL,
		MaxEntries: cfg.CacheMaxEntries,
		InstanceID: fmt.Sprintf("%s-%d", hostname, os.Getpid()),
	}, logger)
	caches := cache.NewManager()
	shared.Register(caches)
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	var bus *amqp.Client
	if cfg.AMQPURL != "" {
		bus, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return fmt.Errorf("amqp: %w", err)
		}
		defer bus.Close()
		shared.SetPublisher(bus)
		logger.Info("Cross-instance cache invalidation enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - cache invalidation is local only")
	}

	var sheets *export.SheetsAppender
	if cfg.SheetsExportEnabled() {
		creds, err := cfg.ServiceAccountJSON()
		if err != nil {
			return err
		}
		sheets, err = export.NewSheetsAppender(startCtx, creds, cfg.ExportSpreadsheetID, cfg.ExportSheetName, logger)
		if err != nil {
			return fmt.Errorf("google sheets export: %w", err)
		}
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.ExportSpreadsheetID)
	}

	detector, err := security.NewDetector(cfg.TrustedProxies, logger)
	if err != nil {
		return err
	}
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimit}, logger)

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		Client:         client,
		Sessions:       sessions,
		Policy:         policy,
		Store:          shared,
		Dashboard:      services.NewDashboardService(logger),
		Forms:          services.NewTransactionFormService(services.ParseReselectPolicy(cfg.CategoryReselect), logger),
		Sheets:         sheets,
		Detector:       detector,
		Limiter:        limiter,
		CurrencySymbol: cfg.CurrencySymbol,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	go worker.NewSweeper("sessions", 10*time.Minute, sessions.Sweep, logger).Run(ctx)
	if limiter.Enabled() {
		go worker.NewSweeper("rate_limit", 5*time.Minute, limiter.Sweep, logger).Run(ctx)
	}
	if bus != nil {
		go func() {
			if err := worker.NewInvalidationWorker(shared, bus, logger).Run(ctx); err != nil {
				logger.Error("Invalidation worker stopped", log.FieldError, err)
			}
		}()
	}

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"api", cfg.APIBaseURL,
		"session_backend", cfg.SessionBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	cli.WaitForShutdown(ctx, done)
	return nil
}
