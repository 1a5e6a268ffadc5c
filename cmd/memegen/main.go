package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/timmy/memegenie/internal/catalog"
	"github.com/timmy/memegenie/internal/config"
	"github.com/timmy/memegenie/internal/logger"
	"github.com/timmy/memegenie/internal/render"
	"github.com/timmy/memegenie/internal/service"
	"github.com/timmy/memegenie/internal/storage"
	"github.com/timmy/memegenie/internal/studio"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "memegen",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	imagePath := flag.String("image", "", "Local image file to caption")
	templateID := flag.String("template", "", "Catalog template id (see -list)")
	list := flag.Bool("list", false, "List catalog templates and exit")
	top := flag.String("top", "", "Top caption")
	bottom := flag.String("bottom", "", "Bottom caption")
	suggest := flag.Int("suggest", -1, "Ask for caption suggestions and apply the one at this index")
	edit := flag.String("edit", "", "Instruction for an AI edit applied before captioning")
	out := flag.String("out", "", "Output PNG file or directory (default: generated name in the current directory)")
	archive := flag.Bool("archive", false, "Also upload the export to the configured storage")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	templates := catalog.FromConfig(cfg.Templates)
	if *list {
		for _, t := range templates.List() {
			fmt.Printf("%s\t%s\t%s\n", t.ID, t.Name, t.URL)
		}
		return
	}

	if (*imagePath == "") == (*templateID == "") {
		appLogger.Fatal("Exactly one of -image or -template is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	loader := service.NewImageLoader(service.LoaderConfig{
		Timeout:   cfg.Fetch.Timeout,
		UserAgent: cfg.Fetch.UserAgent,
		MaxBytes:  int64(cfg.Fetch.MaxMB) << 20,
	})
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
		Gateway: service.NewGeminiGateway(service.GatewayConfig{
			APIKey:       cfg.Gemini.APIKey,
			CaptionModel: cfg.Gemini.CaptionModel,
			EditModel:    cfg.Gemini.EditModel,
			Timeout:      cfg.Gemini.Timeout,
		}, loader),
		Images:      loader,
		Surface:     renderer,
		ExportScale: cfg.Render.ExportScale,
	}
	if *archive {
		if !cfg.Storage.Enabled {
			appLogger.Fatal("-archive requires storage.enabled in config")
		}
		objectStorage, err := storage.NewStorage(cfg.Storage)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize storage")
		}
		if err := objectStorage.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
		}
		opts.Archive = storage.NewExportArchive(objectStorage, cfg.Storage.Prefix)
	}

	s := studio.New("cli", opts)

	if *imagePath != "" {
		data, err := os.ReadFile(*imagePath)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to read image")
		}
		if !s.SelectUpload(ctx, data, mediaTypeOf(*imagePath, data)) {
			appLogger.WithField("path", *imagePath).Fatal("File is not an image")
		}
	} else {
		t, err := templates.Get(*templateID)
		if err != nil {
			appLogger.WithField("template", *templateID).Fatal("Unknown template")
		}
		if err := s.SelectTemplate(ctx, t.URL); err != nil {
			appLogger.WithError(err).Fatal("Failed to select template")
		}
	}

	if *edit != "" {
		runFlight(ctx, appLogger, "edit", func() (*studio.Flight, error) {
			return s.EditImage(ctx, *edit)
		})
		if n := s.State().Notice; n != "" {
			appLogger.Fatal(n)
		}
	}

	s.SetCaptions(*top, *bottom)

	if *suggest >= 0 {
		runFlight(ctx, appLogger, "suggest", func() (*studio.Flight, error) {
			return s.SuggestCaptions(ctx)
		})
		state := s.State()
		if state.Notice != "" {
			appLogger.Fatal(state.Notice)
		}
		for i, p := range state.Suggestions {
			fmt.Fprintf(os.Stderr, "%d: %q / %q\n", i, p.Top, p.Bottom)
		}
		if err := s.ApplySuggestion(*suggest); err != nil {
			appLogger.WithError(err).Fatal("Failed to apply suggestion")
		}
	}

	result, err := s.Export(ctx)
	if err != nil {
		appLogger.WithError(err).Fatal("Export failed")
	}

	path := result.Filename
	if *out != "" {
		path = *out
		if info, err := os.Stat(*out); err == nil && info.IsDir() {
			path = filepath.Join(*out, result.Filename)
		}
	}
	if err := os.WriteFile(path, result.Data, 0o644); err != nil {
		appLogger.WithError(err).Fatal("Failed to write output")
	}

	appLogger.WithFields(logger.Fields{
		"path":   path,
		"width":  result.Width,
		"height": result.Height,
		"url":    result.URL,
	}).Info("Meme exported")
}

// runFlight starts an operation and blocks until it settles.
func runFlight(ctx context.Context, log *logger.Logger, op string, start func() (*studio.Flight, error)) {
	begin := time.Now()
	f, err := start()
	if err != nil {
		log.WithError(err).WithField(logger.FieldOperation, op).Fatal("Operation rejected")
	}
	if err := f.Wait(ctx); err != nil {
		log.WithError(err).WithField(logger.FieldOperation, op).Error("Operation failed")
		return
	}
	log.WithFields(logger.Fields{
		logger.FieldOperation:  op,
		logger.FieldDurationMs: time.Since(begin).Milliseconds(),
	}).Info("Operation completed")
}

func mediaTypeOf(path string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return http.DetectContentType(data)
}
