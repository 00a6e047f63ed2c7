package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinicsuite/hospital-portal/internal/api/router"
	"github.com/clinicsuite/hospital-portal/internal/backup"
	appconfig "github.com/clinicsuite/hospital-portal/internal/config"
	"github.com/clinicsuite/hospital-portal/internal/consultations"
	"github.com/clinicsuite/hospital-portal/internal/labs"
	"github.com/clinicsuite/hospital-portal/internal/mobile"
	"github.com/clinicsuite/hospital-portal/internal/notify"
	"github.com/clinicsuite/hospital-portal/internal/observability/metrics"
	"github.com/clinicsuite/hospital-portal/internal/patients"
	"github.com/clinicsuite/hospital-portal/internal/reports"
	"github.com/clinicsuite/hospital-portal/internal/scheduling"
	"github.com/clinicsuite/hospital-portal/internal/users"
	"github.com/clinicsuite/hospital-portal/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting hospital-portal API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	// Repositories
	usersRepo := users.NewRepository(pool)
	patientsRepo := patients.NewRepository(pool)
	schedulingRepo := scheduling.NewRepository(pool)
	consultationsRepo := consultations.NewRepository(pool)
	labsRepo := labs.NewRepository(pool)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	schedulingMetrics := metrics.NewSchedulingMetrics(registry)
	notifyMetrics := metrics.NewNotifyMetrics(registry)
	backupMetrics := metrics.NewBackupMetrics(registry)

	// Availability cache, optional
	var availabilityCache scheduling.AvailabilityCache
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		availabilityCache = scheduling.NewRedisAvailabilityCache(redis.NewClient(opts), cfg.AvailabilityCacheTTL)
		logger.Info("availability cache enabled", "addr", cfg.RedisAddr)
	}

	// Email
	emailSender := buildEmailSender(ctx, cfg, logger)
	dispatcher := notify.NewDispatcher(emailSender, patientsRepo, usersRepo, notifyMetrics, logger)

	// Services
	schedulingSvc := scheduling.NewService(schedulingRepo, availabilityCache, dispatcher, schedulingMetrics, logger)
	authenticator := users.NewAuthenticator(usersRepo, cfg.JWTSecret, cfg.TokenTTL, logger)
	reportsSvc := reports.NewService(schedulingRepo, consultationsRepo, patientsRepo, labsRepo)

	// Backups
	backupManager := backup.NewManager(backup.Config{
		Dir:           cfg.BackupDir,
		RetentionDays: cfg.BackupRetentionDays,
		S3:            backupS3Client(ctx, cfg, logger),
		Bucket:        cfg.BackupS3Bucket,
	}, []backup.Source{
		{Name: "patients", Dump: func(ctx context.Context) (any, error) { return patientsRepo.ListAll(ctx) }},
		{Name: "appointments", Dump: func(ctx context.Context) (any, error) { return schedulingRepo.ListAll(ctx) }},
		{Name: "consultations", Dump: func(ctx context.Context) (any, error) { return consultationsRepo.ListAll(ctx) }},
		{Name: "lab_orders", Dump: func(ctx context.Context) (any, error) { return labsRepo.ListAll(ctx) }},
	}, backupMetrics, logger)

	// Background workers
	reminderWorker := notify.NewReminderWorker(schedulingRepo, emailSender, notifyMetrics, logger).
		WithInterval(cfg.ReminderInterval).
		WithBatchSize(cfg.ReminderBatchSize)
	go reminderWorker.Start(ctx)
	go backup.NewScheduler(backupManager, cfg.BackupHour, cfg.BackupMinute, logger).Start(ctx)

	// Handlers
	usersHandler := users.NewHandler(usersRepo, authenticator, logger)
	patientsHandler := patients.NewHandler(patientsRepo, logger)
	schedulingHandler := scheduling.NewHandler(schedulingSvc, logger)
	consultationsHandler := consultations.NewHandler(consultationsRepo, logger)
	labsHandler := labs.NewHandler(labsRepo, logger)
	reportsHandler := reports.NewHandler(reportsSvc, logger)
	backupHandler := backup.NewHandler(backupManager, logger)
	mobileHandler := mobile.NewHandler(authenticator, schedulingSvc, patientsRepo, consultationsRepo, labsRepo, consultationsRepo, logger)

	r := router.New(&router.Config{
		Logger:               logger,
		JWTSecret:            cfg.JWTSecret,
		UsersHandler:         usersHandler,
		PatientsHandler:      patientsHandler,
		SchedulingHandler:    schedulingHandler,
		ConsultationsHandler: consultationsHandler,
		LabsHandler:          labsHandler,
		ReportsHandler:       reportsHandler,
		BackupHandler:        backupHandler,
		MobileHandler:        mobileHandler,
		MetricsHandler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func buildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender != nil {
			return sender
		}
		logger.Warn("sendgrid not configured, falling back to stub sender")
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Error("failed to load AWS config for SES", "error", err)
			break
		}
		sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender != nil {
			return sender
		}
	}
	return notify.NewStubEmailSender(logger)
}

func backupS3Client(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) backup.S3Client {
	if cfg.BackupS3Bucket == "" {
		return nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Error("failed to load AWS config for backups", "error", err)
		return nil
	}
	return s3.NewFromConfig(awsCfg)
}
