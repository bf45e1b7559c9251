// Package main provides the API server entry point for the vanity grinder service.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vanity-grinder/internal/api"
	"github.com/vanity-grinder/internal/config"
	"github.com/vanity-grinder/internal/generator"
	"github.com/vanity-grinder/internal/logging"
	"github.com/vanity-grinder/internal/ratelimit"
	"github.com/vanity-grinder/internal/service"
	"github.com/vanity-grinder/internal/storage"
)

func main() {
	fmt.Println("Vanity Grinder API Server")
	log.Println("Server starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logging.Init(cfg.Logging.Level, cfg.Logging.Format)

	logger := logging.L()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Connect to Postgres. The job store is required; everything else
	// degrades gracefully.
	logger.Info("Connecting to Postgres...")
	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to Postgres")
		os.Exit(1)
	}
	defer postgres.Close()

	// Connect to Redis. Optional: without it, job reads always hit
	// Postgres and the submission budget is not enforced.
	var redisCache *storage.RedisCache
	if cfg.Database.Redis.Enabled {
		redisCache, err = storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, continuing without job cache and submission budget")
			redisCache = nil
		} else {
			defer redisCache.Close()
		}
	}

	// Connect to ClickHouse. Optional: without it, throughput telemetry
	// is not recorded.
	var clickhouse *storage.ClickHouseDB
	if cfg.Database.ClickHouse.Enabled {
		clickhouse, err = storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Warn("ClickHouse unavailable, continuing without throughput telemetry")
			clickhouse = nil
		} else {
			defer clickhouse.Close()
		}
	}

	logger.Info("Storage connections established")

	// Initialize repositories
	jobRepo := storage.NewVanityJobRepository(postgres)

	var jobCache *storage.JobCache
	if redisCache != nil {
		jobCache = storage.NewJobCache(redisCache, cfg.Cache.JobTTL, cfg.Cache.TerminalJobTTL)
	}

	var telemetry *storage.TelemetryRepository
	if clickhouse != nil {
		telemetry = storage.NewTelemetryRepository(clickhouse)
		telemetry.Start()
		defer telemetry.Stop()
	}

	// Initialize the generator manager
	managerCfg := &generator.ManagerConfig{
		Store:           jobRepo,
		MaxTotalThreads: cfg.Generator.MaxTotalThreads,
		MaxQueueDepth:   cfg.Generator.MaxQueueDepth,
		BatchSize:       cfg.Generator.BatchSize,
		FlushInterval:   cfg.Generator.ProgressFlushInterval,
		LeaseTTL:        cfg.Generator.LeaseTTL,
		ReaperInterval:  cfg.Generator.ReaperInterval,
	}
	if telemetry != nil {
		managerCfg.Telemetry = telemetry
	}

	manager, err := generator.NewManager(managerCfg)
	if err != nil {
		logger.WithError(err).Error("Failed to build generator manager")
		os.Exit(1)
	}
	if err := manager.Start(context.Background()); err != nil {
		logger.WithError(err).Error("Failed to start generator manager")
		os.Exit(1)
	}

	logger.WithFields(map[string]interface{}{
		"maxThreads": cfg.Generator.MaxTotalThreads,
		"queueDepth": cfg.Generator.MaxQueueDepth,
	}).Info("Generator manager started")

	// Initialize the vanity service
	serviceCfg := &service.Config{
		Store:                  jobRepo,
		Generator:              manager,
		MaxThreadsPerJob:       cfg.Generator.MaxTotalThreads,
		DefaultThreadCount:     cfg.Generator.DefaultThreadCount,
		DefaultCPULimitPercent: cfg.Generator.DefaultCPULimitPercent,
		BaselineTime:           cfg.Benchmark.BaselineTime,
		BaselineLength:         cfg.Benchmark.BaselineLength,
	}
	if jobCache != nil {
		serviceCfg.Cache = jobCache
	}
	if telemetry != nil {
		serviceCfg.Throughput = telemetry
	}

	vanityService, err := service.NewVanityService(serviceCfg)
	if err != nil {
		logger.WithError(err).Error("Failed to build vanity service")
		os.Exit(1)
	}

	// Submission budget limiter, only when Redis is available
	var submitLimiter api.SubmitLimiter
	if redisCache != nil {
		limiter, err := ratelimit.NewSubmissionLimiter(&ratelimit.SubmissionLimiterConfig{
			Redis:  redisCache.Client(),
			Limit:  cfg.RateLimit.SubmitLimit,
			Window: cfg.RateLimit.SubmitWindow,
		})
		if err != nil {
			logger.WithError(err).Warn("Failed to build submission limiter, continuing without submission budget")
		} else {
			submitLimiter = limiter
		}
	}

	logger.Info("Services initialized")

	// Create server configuration
	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}

	server := api.NewServer(serverConfig, vanityService, submitLimiter)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server failed to start")
			os.Exit(1)
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	// Stop accepting requests first, then drain the searches so final
	// progress reaches the store before connections close.
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if err := manager.Stop(ctx); err != nil {
		logger.WithError(err).Error("Generator manager did not drain cleanly")
	}

	logger.Info("Server exited")
}
