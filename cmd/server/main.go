package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/contactflow/importer/internal/config"
	"github.com/contactflow/importer/internal/contact"
	"github.com/contactflow/importer/internal/importer"
	"github.com/contactflow/importer/internal/jobs"
	"github.com/contactflow/importer/internal/logging"
	"github.com/contactflow/importer/internal/observability/metrics"
	"github.com/contactflow/importer/internal/store"
	"github.com/contactflow/importer/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"batch_size", cfg.Import.BatchSize,
		"max_concurrent_batches", cfg.Import.MaxConcurrentBatches,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	// Cancellable context for background work
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	// Job registry: Redis when configured, in-process otherwise
	var jobStore jobs.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("failed to ping redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		jobStore = jobs.NewRedisStore(rdb, cfg.Import.JobRetention)
		slog.Info("job store ready", "backend", "redis", "addr", cfg.Redis.Addr)
	} else {
		mem := jobs.NewMemoryStore(cfg.Import.JobRetention)
		go jobs.StartSweeper(jobCtx, mem, cfg.Import.JobSweepInterval, slog.Default())
		jobStore = mem
		slog.Info("job store ready", "backend", "memory")
	}

	registry := prometheus.NewRegistry()
	importMetrics := metrics.NewImportMetrics(registry)

	clients := store.NewClientStore()
	contacts := store.NewContactStore()
	imp := importer.New(
		importer.NewCommitter(pool, clients, contacts, slog.Default()),
		importer.NewPerRecordFallback(pool, clients, contacts, slog.Default()),
		jobStore,
		importMetrics,
		importer.Config{
			BatchSize:            cfg.Import.BatchSize,
			MaxConcurrentBatches: cfg.Import.MaxConcurrentBatches,
		},
		slog.Default(),
	)

	webCfg := web.Config{
		MaxFileSize:    cfg.Import.MaxFileSize,
		RequestTimeout: cfg.Server.RequestTimeout,
		Policy: contact.Policy{
			StrictMode:          cfg.Import.StrictMode,
			CheckDuplicatePhone: cfg.Import.CheckDuplicatePhone,
			CheckDuplicateEmail: cfg.Import.CheckDuplicateEmail,
			ValidatePhoneFormat: cfg.Import.ValidatePhoneFormat,
			ValidateEmailFormat: cfg.Import.ValidateEmailFormat,
		},
	}
	if cfg.Rate.Enabled {
		webCfg.Rate = cfg.Rate.RequestsPerMinute
	}

	server := web.NewServer(imp, jobStore, registry, webCfg, slog.Default())

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(cfg.Server.Addr()); err != nil && err != http.ErrServerClosed {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
