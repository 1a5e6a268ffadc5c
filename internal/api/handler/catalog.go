package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/memegenie/internal/catalog"
	"github.com/timmy/memegenie/internal/prompts"
)

// CatalogHandler serves the fixed template catalog and edit presets.
type CatalogHandler struct {
	templates catalog.Catalog
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(templates catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{templates: templates}
}

// ListTemplates handles GET /api/v1/templates.
func (h *CatalogHandler) ListTemplates(c *gin.Context) {
	templates := h.templates.List()
	c.JSON(http.StatusOK, gin.H{
		"templates": templates,
		"total":     len(templates),
	})
}

// ListEditPrompts handles GET /api/v1/edit-prompts.
func (h *CatalogHandler) ListEditPrompts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"prompts": prompts.Presets(),
	})
}
