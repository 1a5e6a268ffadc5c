package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/memegenie/internal/api"
	"github.com/timmy/memegenie/internal/catalog"
	"github.com/timmy/memegenie/internal/config"
	"github.com/timmy/memegenie/internal/logger"
	"github.com/timmy/memegenie/internal/render"
	"github.com/timmy/memegenie/internal/service"
	"github.com/timmy/memegenie/internal/storage"
	"github.com/timmy/memegenie/internal/studio"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loader := service.NewImageLoader(service.LoaderConfig{
		Timeout:   cfg.Fetch.Timeout,
		UserAgent: cfg.Fetch.UserAgent,
		MaxBytes:  int64(cfg.Fetch.MaxMB) << 20,
	})

	gateway := service.NewGeminiGateway(service.GatewayConfig{
		APIKey:       cfg.Gemini.APIKey,
		CaptionModel: cfg.Gemini.CaptionModel,
		EditModel:    cfg.Gemini.EditModel,
		Timeout:      cfg.Gemini.Timeout,
	}, loader)
	if cfg.Gemini.APIKey == "" {
		appLogger.Warn("GEMINI_API_KEY is not set; caption and edit requests will fail")
	}

	renderer, err := render.NewRenderer(render.Options{
		StageWidth:  cfg.Render.StageWidth,
		StageHeight: cfg.Render.StageHeight,
		FontPath:    cfg.Render.FontPath,
		FontRatio:   cfg.Render.FontRatio,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize renderer")
	}

	opts := studio.Options{
		Gateway:     gateway,
		Images:      loader,
		Surface:     renderer,
		ExportScale: cfg.Render.ExportScale,
	}

	// Optional export archive (supports MinIO, R2, S3)
	if cfg.Storage.Enabled {
		objectStorage, err := storage.NewStorage(cfg.Storage)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize storage")
		}
		if err := objectStorage.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
		}
		opts.Archive = storage.NewExportArchive(objectStorage, cfg.Storage.Prefix)
		appLogger.WithFields(logger.Fields{
			"bucket": cfg.Storage.Bucket,
			"prefix": cfg.Storage.Prefix,
		}).Info("Export archive enabled")
	}

	registry := studio.NewRegistry(opts, cfg.Session.TTL)
	go registry.Run(ctx, cfg.Session.SweepInterval)

	templates := catalog.FromConfig(cfg.Templates)
	router := api.SetupRouter(registry, templates, cfg.Server, appLogger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":          cfg.Server.Port,
			"mode":          cfg.Server.Mode,
			"caption_model": cfg.Gemini.CaptionModel,
			"edit_model":    cfg.Gemini.EditModel,
			"templates":     len(templates.List()),
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
