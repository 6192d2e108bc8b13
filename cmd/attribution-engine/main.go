package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/attributionops/attribution-engine/internal/config"
	"github.com/attributionops/attribution-engine/internal/database"
	"github.com/attributionops/attribution-engine/internal/httpserver"
	"github.com/attributionops/attribution-engine/internal/metrics"
	"github.com/attributionops/attribution-engine/internal/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logFormat := cfg.Log.Format
	if cfg.IsDevelopment() {
		logFormat = "console"
	}
	logger, err := middleware.NewLogger(cfg.Log.Level, logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting attribution engine",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
	)

	// Main context, cancelled on shutdown to stop background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	defer connectCancel()

	// Try to connect to PostgreSQL (ad ledgers)
	db, err := database.NewPostgresDB(connectCtx, cfg.Database, logger)
	if err != nil {
		logger.Warn("PostgreSQL not available, using in-memory ledgers", zap.Error(err))
		db = nil
	} else {
		defer db.Close()
	}

	// Try to connect to ClickHouse (event warehouse)
	ch, err := database.NewClickHouseDB(connectCtx, cfg.ClickHouse, logger)
	if err != nil {
		logger.Warn("ClickHouse not available, using in-memory events", zap.Error(err))
		ch = nil
	} else {
		defer ch.Close()
	}

	// Try to connect to Redis (rate limiting, run markers)
	rdb, err := database.NewRedisDB(connectCtx, cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis not available, rate limiting falls back to local buckets", zap.Error(err))
		rdb = nil
	} else {
		defer rdb.Close()
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics("attribution")
	}

	var redisClient *redis.Client
	if rdb != nil {
		redisClient = rdb.Client
	}
	rateLimitMW := middleware.NewRateLimitMiddleware(cfg.RateLimit, redisClient, m, logger)

	handler := httpserver.NewServer(&httpserver.Dependencies{
		DB:         db,
		ClickHouse: ch,
		Redis:      rdb,
		Config:     cfg,
		Logger:     logger,
		Metrics:    m,
		RateLimit:  rateLimitMW,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Start rate limiter cleanup goroutine
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rateLimitMW.CleanupIPLimiters()
			case <-ctx.Done():
				return
			}
		}
	}()

	// Feed the connection pool gauges
	if db != nil && m != nil {
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					idle, inUse, total := db.Stats()
					m.UpdateDBStats("postgres", idle, inUse, total)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// Stop background goroutines
	cancel()

	logger.Info("server stopped")
}
