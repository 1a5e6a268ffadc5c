package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/memegenie/internal/api/handler"
	"github.com/timmy/memegenie/internal/api/middleware"
	"github.com/timmy/memegenie/internal/catalog"
	"github.com/timmy/memegenie/internal/config"
	"github.com/timmy/memegenie/internal/logger"
	"github.com/timmy/memegenie/internal/studio"
)

// SetupRouter configures the Gin router with all routes
// Parameters:
//   - registry: live studio sessions.
//   - templates: template catalog.
//   - cfg: server section (mode, CORS, upload limit).
//   - log: base logger for request logging.
//
// Returns:
//   - *gin.Engine: configured router.
func SetupRouter(
	registry *studio.Registry,
	templates catalog.Catalog,
	cfg config.ServerConfig,
	log *logger.Logger,
) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	if cfg.MaxUploadMB > 0 {
		r.MaxMultipartMemory = int64(cfg.MaxUploadMB) << 20
	}

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(registry)
	catalogHandler := handler.NewCatalogHandler(templates)
	sessionHandler := handler.NewSessionHandler(registry, templates, cfg.MaxUploadMB)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// Catalog
		v1.GET("/templates", catalogHandler.ListTemplates)
		v1.GET("/edit-prompts", catalogHandler.ListEditPrompts)

		// Sessions
		v1.POST("/sessions", sessionHandler.Create)
		sessions := v1.Group("/sessions/:id")
		{
			sessions.GET("", sessionHandler.Get)
			sessions.DELETE("", sessionHandler.Delete)

			// Image source
			sessions.POST("/template", sessionHandler.SelectTemplate)
			sessions.POST("/upload", sessionHandler.Upload)
			sessions.GET("/image", sessionHandler.Image)

			// Captions
			sessions.PUT("/captions", sessionHandler.SetCaptions)
			sessions.POST("/captions/apply", sessionHandler.ApplySuggestion)
			sessions.POST("/captions/suggest", sessionHandler.SuggestCaptions)
			sessions.POST("/reset", sessionHandler.Reset)

			// AI edit
			sessions.POST("/edit", sessionHandler.EditImage)

			// Render
			sessions.GET("/preview.png", sessionHandler.Preview)
			sessions.GET("/export", sessionHandler.Export)
		}
	}

	return r
}
