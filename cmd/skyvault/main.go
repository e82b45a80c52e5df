package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/skyvault/skyvault/internal/logger"
	"github.com/skyvault/skyvault/pkg/config"
	"github.com/skyvault/skyvault/pkg/trash"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	logLevel := flag.String("log-level", "", "Log level override (DEBUG, INFO, WARN, ERROR)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// CLI flag overrides config and environment
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger.SetLevel(cfg.Logging.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("SkyVault - Multi-Tenant Storage Engine")
	logger.Info("Log level set to: %s", cfg.Logging.Level)

	// ========================================================================
	// Stores
	// ========================================================================

	blobStore, err := config.CreateBlobStore(ctx, &cfg.Blob)
	if err != nil {
		log.Fatalf("Failed to create blob store: %v", err)
	}

	metadataStore, err := config.CreateMetadataStore(ctx, &cfg.Metadata)
	if err != nil {
		log.Fatalf("Failed to create metadata store: %v", err)
	}
	defer func() {
		if err := metadataStore.Close(); err != nil {
			logger.Error("Failed to close metadata store: %v", err)
		}
	}()

	logger.Info("Stores ready: metadata=%s blob=%s", cfg.Metadata.Type, cfg.Blob.Type)

	// ========================================================================
	// Engines
	// ========================================================================

	engine := NewEngine(metadataStore, blobStore, cfg)
	logger.Info("Trash retention window: %s", cfg.Trash.Retention())

	// ========================================================================
	// Background Workers
	// ========================================================================

	collector := trash.NewCollector(engine.Trash, trash.CollectorConfig{
		Enabled:  cfg.Trash.PurgeEnabled,
		Interval: cfg.Trash.PurgeInterval,
	})
	collector.Start()

	// ========================================================================
	// Shutdown
	// ========================================================================

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("Received signal %s, shutting down...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := collector.Stop(shutdownCtx); err != nil {
		logger.Error("Trash collector shutdown failed: %v", err)
	}

	logger.Info("Shutdown complete")
}
