package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"product-catalog/internal/config"
	"product-catalog/internal/database"
	"product-catalog/internal/handler"
	"product-catalog/internal/imagestore"
	"product-catalog/internal/repository"
	"product-catalog/internal/router"
	"product-catalog/internal/service"

	"github.com/docker/go-units"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting product catalog API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	productRepo, closeRepo, err := newProductRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	images, err := newImageStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Initialize services
	productService := service.NewProductService(productRepo, images, service.ImageSettings{
		AllowedExtensions: cfg.Image.AllowedExtensions,
		MaxUploadSize:     cfg.Image.MaxUploadSize,
	}, logger)

	logger.Info().
		Strs("allowed_extensions", cfg.Image.AllowedExtensions).
		Str("max_upload_size", units.HumanSize(float64(cfg.Image.MaxUploadSize))).
		Msg("image upload policy")

	// Initialize HTTP handlers
	productHandler := handler.NewProductHandler(productService, cfg.Image.MaxUploadSize, logger)

	// Metrics registry with Go runtime and process collectors
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize router
	mux := router.New(productHandler, cfg.Auth.APIKey, registry, registry, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// newProductRepository builds the repository selected by STORAGE_DRIVER and
// returns a function releasing its resources.
func newProductRepository(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.ProductRepository, func(), error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn().Msg("using in-memory product storage, data is lost on restart")
		return repository.NewMemoryProductRepository(logger), func() {}, nil
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database.ConnectionString(), logger); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return repository.NewProductRepository(pool, logger), pool.Close, nil
}

// newImageStore builds the image store selected by IMAGE_STORE.
func newImageStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (imagestore.Store, error) {
	if cfg.Image.Store == "s3" {
		store, err := imagestore.NewS3Store(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Prefix, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 image store: %w", err)
		}
		return store, nil
	}

	store, err := imagestore.NewLocalStore(cfg.Image.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local image store: %w", err)
	}
	return store, nil
}
