package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mediabandit/internal/admin"
	"mediabandit/internal/admission"
	"mediabandit/internal/config"
	"mediabandit/internal/database"
	"mediabandit/internal/delivery"
	"mediabandit/internal/downloader"
	"mediabandit/internal/extractor"
	"mediabandit/internal/metrics"
	"mediabandit/internal/pending"
	"mediabandit/internal/progress"
	"mediabandit/internal/ratelimit"
	"mediabandit/internal/scanner"
	"mediabandit/internal/urlsafe"
	"mediabandit/internal/videocache"
	"mediabandit/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup structured logging
	setupLogging(cfg.LogLevel)

	slog.Info("Starting mediabandit", "version", "1.0.0")

	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}()

	reg := metrics.NewRegistry()

	cache, err := videocache.New(videocache.Options{
		Enabled:  cfg.VideoCacheEnabled,
		Dir:      cfg.VideoCacheDir,
		TTL:      cfg.VideoCacheTTL(),
		MaxItems: cfg.VideoCacheMaxItems,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize video cache: %w", err)
	}

	users := ratelimit.NewUserLimiter(cfg.UserCooldown(), cfg.MaxConcurrentPerUser)
	callbacks := ratelimit.NewCallbackThrottle(
		time.Duration(cfg.CallbackChatCooldownSeconds)*time.Second,
		time.Duration(cfg.CallbackGlobalWindowSeconds)*time.Second,
		cfg.CallbackGlobalMaxCalls,
	)
	gate := admission.NewGate(cfg.MaxGlobalConcurrentDownloads, reg)
	throttle := progress.NewThrottle(
		time.Duration(cfg.StatusMinIntervalSeconds)*time.Second,
		cfg.StatusPercentStep,
	)
	tokens := pending.NewStore(cfg.PendingTokenTTL(), reg)

	orch := downloader.NewOrchestrator(downloader.Deps{
		Users:     users,
		Callbacks: callbacks,
		Cache:     cache,
		Gate:      gate,
		Throttle:  throttle,
		Extractor: extractor.NewService(extractor.Options{
			YtdlpPath:   cfg.YtdlpPath,
			CookiesFile: cfg.YtdlpCookiesFile,
			UserAgent:   cfg.YtdlpUserAgent,
		}),
		Scanner: scanner.NewService(cfg.MediaScanCommand,
			time.Duration(cfg.MediaScanTimeoutSeconds)*time.Second),
		Delivery:        delivery.NewService(),
		History:         db,
		Metrics:         reg,
		URLCheck:        urlsafe.Check,
		TempDir:         cfg.TempDir,
		DownloadTimeout: cfg.DownloadTimeout(),
		MaxFileBytes:    cfg.MaxFileBytes,
	})

	adminCtrl := admin.NewController(orch, tokens, gate, users, cache)
	server := web.NewServer(cfg, orch, adminCtrl, tokens, db, reg)

	return runServer(server, cfg, cache, tokens, db)
}

func runServer(server *web.Server, cfg *config.Config, cache *videocache.Cache, tokens *pending.Store, db *database.DB) error {
	// Create main context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background maintenance loops
	go cache.Run(ctx, 5*time.Minute)
	go tokens.Run(ctx, time.Duration(cfg.PendingCleanupIntervalSeconds)*time.Second)
	go startHistoryCleanup(ctx, db, cfg.HistoryRetentionDays)

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed to start: %w", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	}

	// Cancel context to stop the maintenance loops
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// setupLogging configures structured logging based on the log level
func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)
}

// startHistoryCleanup prunes old download history once a day
func startHistoryCleanup(ctx context.Context, db *database.DB, retentionDays int) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	retention := time.Duration(retentionDays) * 24 * time.Hour

	// Run cleanup immediately on startup
	cleanupOldRecords(db, retention)

	for {
		select {
		case <-ctx.Done():
			slog.Info("History cleanup routine shutting down")
			return
		case <-ticker.C:
			cleanupOldRecords(db, retention)
		}
	}
}

func cleanupOldRecords(db *database.DB, retention time.Duration) {
	deleted, err := db.CleanupOldRecords(retention)
	if err != nil {
		slog.Error("Failed to cleanup old history records", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("History cleanup completed", "deleted", deleted)
	}
}
