package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shelfd/shelfd/auth"
	"github.com/shelfd/shelfd/config"
	"github.com/shelfd/shelfd/core"
	"github.com/shelfd/shelfd/events"
	"github.com/shelfd/shelfd/internal/ident"
	"github.com/shelfd/shelfd/locks"
	"github.com/shelfd/shelfd/metadata"
	"github.com/shelfd/shelfd/server"
	"github.com/shelfd/shelfd/shares"
	"github.com/shelfd/shelfd/trash"
	"github.com/shelfd/shelfd/versions"
)

var rootCmd = &cobra.Command{
	Use:   "shelfd",
	Short: "shelfd - self-hosted file sharing daemon",
	Long: `shelfd is a self-hosted file sharing service with soft delete,
file versioning, path metadata, and policy-gated share links.`,
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the shelfd server",
	Long:  "Start the shelfd server over the configured storage root",
	RunE:  runServer,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  "Validate the shelfd configuration and display the loaded settings",
	RunE:  validateConfig,
}

var configFilePath string

func main() {
	serverCmd.Flags().StringVarP(&configFilePath, "config", "c", "", "Path to configuration file")

	configCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serverCmd, configCmd)

	// If no command specified, default to server
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "server")
	}

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// runServer starts the shelfd server
func runServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfigFromFile(configFilePath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initializeLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to sync logger: %v\n", err)
		}
	}()

	logger.Info("Starting shelfd server",
		zap.String("listen_addr", cfg.Server.ListenAddr),
		zap.String("root_path", cfg.Storage.RootPath))

	if err := os.MkdirAll(cfg.Storage.RootPath, 0o755); err != nil {
		return fmt.Errorf("failed to create storage root: %w", err)
	}

	// Initialize metadata store
	logger.Info("Initializing metadata store")
	metadataStore, err := metadata.NewStore(filepath.Join(cfg.Storage.DataDir, "meta"), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize metadata store: %w", err)
	}
	metadataStore.StartFlushWorker(ctx, cfg.Storage.FlushInterval)
	migrator := metadata.NewMigrator(metadataStore, logger)

	// Initialize lock manager
	lockManager := locks.NewLocalManager()
	defer lockManager.Close()

	clock := ident.RealClock{}
	hub := events.NewHub(logger)

	// Initialize version manager
	logger.Info("Initializing version manager")
	versionManager, err := versions.NewManager(
		cfg.Storage.RootPath,
		filepath.Join(cfg.Storage.DataDir, "versions"),
		metadataStore,
		clock,
		ident.UUIDGenerator{},
		cfg.Versions.MaxPerFile,
		cfg.Versions.SizeCeiling,
		logger)
	if err != nil {
		return fmt.Errorf("failed to initialize version manager: %w", err)
	}

	// Initialize trash manager
	logger.Info("Initializing trash manager")
	trashManager, err := trash.NewManager(
		cfg.Storage.RootPath,
		filepath.Join(cfg.Storage.DataDir, "trash"),
		metadataStore,
		migrator,
		versionManager,
		clock,
		ident.UUIDGenerator{},
		hub,
		logger)
	if err != nil {
		return fmt.Errorf("failed to initialize trash manager: %w", err)
	}

	// Initialize share manager
	logger.Info("Initializing share manager")
	shareManager := shares.NewManager(
		cfg.Storage.RootPath,
		metadataStore,
		clock,
		ident.RandomTokenGenerator{},
		hub,
		logger)

	// Initialize core engine
	logger.Info("Initializing core engine")
	engine := core.NewEngine(
		cfg.Storage.RootPath,
		metadataStore,
		migrator,
		trashManager,
		versionManager,
		lockManager,
		hub,
		clock,
		logger)

	// Initialize authentication
	authenticator := auth.NewAPIKeyAuthenticator(cfg.Auth.APIKeys)

	// Start background maintenance workers
	shares.StartCleanupWorker(ctx, shareManager, cfg.Shares.CleanupInterval, logger)
	startTrashPurgeWorker(ctx, trashManager, cfg.Trash.PurgeInterval, cfg.Trash.Retention, logger)

	// Initialize HTTP router
	logger.Info("Initializing HTTP router")
	router := server.NewRouter(engine, authenticator, trashManager, versionManager, shareManager, hub, &cfg, logger)

	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", cfg.Server.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	// Stop workers and force a final metadata flush before exit.
	cancel()
	if err := metadataStore.Flush(); err != nil {
		logger.Error("Final metadata flush failed", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
	return nil
}

// startTrashPurgeWorker periodically purges trash entries older than the
// retention window.
func startTrashPurgeWorker(ctx context.Context, manager *trash.Manager, interval, retention time.Duration, logger *zap.Logger) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purged, err := manager.PurgeExpired(retention)
				if err != nil {
					logger.Error("Trash purge sweep failed", zap.Error(err))
					continue
				}
				if purged > 0 {
					logger.Info("Purged expired trash entries", zap.Int("count", purged))
				}
			}
		}
	}()
}

// validateConfig validates the shelfd configuration and displays settings
func validateConfig(cmd *cobra.Command, args []string) error {
	fmt.Println("Validating configuration...")

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Configuration validation failed: %v\n", err)
		return err
	}

	fmt.Println("Configuration is valid")
	fmt.Printf("Listen Address: %s\n", cfg.Server.ListenAddr)
	fmt.Printf("Storage Root: %s\n", cfg.Storage.RootPath)
	fmt.Printf("Data Directory: %s\n", cfg.Storage.DataDir)
	fmt.Printf("Trash Retention: %s\n", cfg.Trash.Retention)
	fmt.Printf("Versions Per File: %d\n", cfg.Versions.MaxPerFile)

	return nil
}

// initializeLogger creates a zap logger based on configuration
func initializeLogger(logCfg config.LogConfig) (*zap.Logger, error) {
	var cfg zap.Config

	if logCfg.Format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	switch logCfg.Level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}
