package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/globalmind/support-platform/internal/api/router"
	"github.com/globalmind/support-platform/internal/compliance"
	appconfig "github.com/globalmind/support-platform/internal/config"
	"github.com/globalmind/support-platform/internal/crisis"
	"github.com/globalmind/support-platform/internal/culture"
	"github.com/globalmind/support-platform/internal/http/handlers"
	"github.com/globalmind/support-platform/internal/notify"
	"github.com/globalmind/support-platform/internal/observability/metrics"
	"github.com/globalmind/support-platform/internal/pipeline"
	"github.com/globalmind/support-platform/internal/privacy"
	"github.com/globalmind/support-platform/internal/respond"
	"github.com/globalmind/support-platform/internal/session"
	"github.com/globalmind/support-platform/internal/store"
	"github.com/globalmind/support-platform/internal/worker"
	"github.com/globalmind/support-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := appconfig.Load()
	if err != nil {
		logging.Default().Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting globalmind support API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	auditDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open audit connection", "error", err)
		os.Exit(1)
	}
	defer auditDB.Close()

	redisClient := newRedisClient(ctx, cfg, logger)

	guard, err := privacy.NewGuard(logger, cfg.KeyFile)
	if err != nil {
		logger.Error("failed to load keyring", "error", err)
		os.Exit(1)
	}
	defer guard.Close()

	scorer, err := crisis.NewScorer(logger, cfg.CategorySeverities, cfg.RegionMultipliers)
	if err != nil {
		logger.Error("failed to build crisis scorer", "error", err)
		os.Exit(1)
	}

	st := store.NewStore(pool)
	audit := compliance.NewAuditService(auditDB)

	registry := prometheus.NewRegistry()
	pm := metrics.NewPipelineMetrics(registry)

	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	}
	alerter := notify.NewCrisisAlerter(sender, cfg.CrisisAlertEmail, logger)

	pipelineCfg := pipeline.Config{
		Logger:      logger,
		Resolver:    culture.NewResolver(),
		Scorer:      scorer,
		Synthesizer: respond.NewSynthesizer(logger),
		Guard:       guard,
		Store:       st,
		Audit:       audit,
		Alerter:     alerter,
		Metrics:     pm,
		Threshold:   cfg.CrisisThreshold,
	}
	var history *session.HistoryStore
	if redisClient != nil {
		history = session.NewHistoryStore(redisClient, cfg.SessionHistoryTTL, cfg.SessionHistoryMax)
		pipelineCfg.History = history
	}

	orch, err := pipeline.New(pipelineCfg)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	backup := newBackup(ctx, cfg, logger)

	maint := worker.NewMaintenance(st, guard.Keyring(), audit, logger).
		WithInterval(cfg.MaintenanceInterval).
		WithRetentionDays(cfg.DataRetentionDays).
		WithKeyMaxAge(cfg.KeyRotationEvery).
		WithRetiredKeyMaxAge(cfg.RetiredKeyMaxAge).
		WithBackup(backup, cfg.BackupInterval).
		WithMetrics(pm)
	go maint.Run(ctx)

	supportHandler := handlers.NewSupportHandler(orch, st, guard, logger)
	wsHandler := handlers.NewWSHandler(orch, st, logger)
	adminCfg := handlers.AdminConfig{
		Store:         st,
		Audit:         audit,
		Keyring:       guard.Keyring(),
		Backup:        backup,
		Logger:        logger,
		RetentionDays: cfg.DataRetentionDays,
	}
	if history != nil {
		adminCfg.History = history
	}
	adminHandler := handlers.NewAdminHandler(adminCfg)

	r := router.New(&router.Config{
		Logger:          logger,
		SupportHandler:  supportHandler,
		WSHandler:       wsHandler,
		AdminHandler:    adminHandler,
		AdminAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
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
}

// newRedisClient connects to redis for session history. Redis is optional;
// the pipeline runs without short-term context when it is down.
func newRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis not available, session history disabled", "error", err)
		return nil
	}
	return client
}

// newBackup builds the S3 snapshot writer. Backups stay disabled when no
// bucket is configured or the AWS config cannot be loaded.
func newBackup(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *store.Backup {
	if cfg.BackupS3Bucket == "" {
		return store.NewBackup(nil, "", logger)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Warn("failed to load AWS config, backups disabled", "error", err)
		return store.NewBackup(nil, "", logger)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWSEndpointOverride != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointOverride)
			o.UsePathStyle = true
		}
	})
	return store.NewBackup(s3Client, cfg.BackupS3Bucket, logger)
}
