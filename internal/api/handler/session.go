package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/memegenie/internal/catalog"
	"github.com/timmy/memegenie/internal/domain"
	"github.com/timmy/memegenie/internal/studio"
)

// SessionHandler handles studio session endpoints.
type SessionHandler struct {
	registry       *studio.Registry
	templates      catalog.Catalog
	maxUploadBytes int64
}

// NewSessionHandler creates a new session handler.
// Parameters:
//   - registry: live studio sessions.
//   - templates: catalog used to resolve template ids.
//   - maxUploadMB: upload size cap in megabytes.
//
// Returns:
//   - *SessionHandler: initialized handler.
func NewSessionHandler(registry *studio.Registry, templates catalog.Catalog, maxUploadMB int) *SessionHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}
	return &SessionHandler{
		registry:       registry,
		templates:      templates,
		maxUploadBytes: int64(maxUploadMB) << 20,
	}
}

// SelectTemplateRequest picks the working image from the catalog. Only
// catalog URLs are ever fetched by the server.
type SelectTemplateRequest struct {
	TemplateID string `json:"template_id" binding:"required"`
}

// CaptionsRequest sets the captions as typed by the user.
type CaptionsRequest struct {
	Top    string `json:"top"`
	Bottom string `json:"bottom"`
}

// ApplySuggestionRequest applies suggestion Index.
type ApplySuggestionRequest struct {
	Index *int `json:"index" binding:"required"`
}

// EditRequest carries a free-text image edit instruction.
type EditRequest struct {
	Instruction string `json:"instruction"`
}

func (h *SessionHandler) session(c *gin.Context) (*studio.Studio, bool) {
	s, err := h.registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return nil, false
	}
	return s, true
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error": "Invalid request: " + err.Error(),
	})
}

// Create handles POST /api/v1/sessions.
func (h *SessionHandler) Create(c *gin.Context) {
	s := h.registry.Create()
	c.JSON(http.StatusCreated, newSessionView(s))
}

// Get handles GET /api/v1/sessions/:id.
func (h *SessionHandler) Get(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newSessionView(s))
}

// Delete handles DELETE /api/v1/sessions/:id.
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.registry.Delete(c.Param("id")); err != nil {
		respondError(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// SelectTemplate handles POST /api/v1/sessions/:id/template.
func (h *SessionHandler) SelectTemplate(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req SelectTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	tmpl, err := h.templates.Get(strings.TrimSpace(req.TemplateID))
	if err != nil {
		respondError(c, err, s)
		return
	}

	if err := s.SelectTemplate(c.Request.Context(), tmpl.URL); err != nil {
		respondError(c, err, s)
		return
	}
	c.JSON(http.StatusOK, newSessionView(s))
}

// Upload handles POST /api/v1/sessions/:id/upload. A request without a file
// leaves the session unchanged.
func (h *SessionHandler) Upload(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	// multipart overhead on top of the file itself
	limit := h.maxUploadBytes + 1<<20
	if c.Request.ContentLength > limit {
		h.tooLarge(c)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			h.tooLarge(c)
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			c.JSON(http.StatusOK, newSessionView(s))
		default:
			badRequest(c, err)
		}
		return
	}
	if fh.Size > h.maxUploadBytes {
		h.tooLarge(c)
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, fmt.Errorf("failed to open upload: %w", err), s)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, fmt.Errorf("failed to read upload: %w", err), s)
		return
	}

	s.SelectUpload(c.Request.Context(), data, fh.Header.Get("Content-Type"))
	c.JSON(http.StatusOK, newSessionView(s))
}

func (h *SessionHandler) tooLarge(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
		"error": fmt.Sprintf("upload exceeds %d MB", h.maxUploadBytes>>20),
	})
}

// Image handles GET /api/v1/sessions/:id/image. Embedded images are served
// directly, remote ones by redirect.
func (h *SessionHandler) Image(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	ref := s.State().Image
	if ref.IsZero() {
		respondError(c, domain.ErrNoImage, nil)
		return
	}
	if ref.Kind() == domain.ImageKindURL {
		c.Redirect(http.StatusFound, ref.URL())
		return
	}

	mediaType, data, err := ref.Embedded()
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.Data(http.StatusOK, mediaType, data)
}

// SetCaptions handles PUT /api/v1/sessions/:id/captions.
func (h *SessionHandler) SetCaptions(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req CaptionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.SetCaptions(req.Top, req.Bottom)
	c.JSON(http.StatusOK, newSessionView(s))
}

// ApplySuggestion handles POST /api/v1/sessions/:id/captions/apply.
func (h *SessionHandler) ApplySuggestion(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req ApplySuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.ApplySuggestion(*req.Index); err != nil {
		respondError(c, err, s)
		return
	}
	c.JSON(http.StatusOK, newSessionView(s))
}

// SuggestCaptions handles POST /api/v1/sessions/:id/captions/suggest.
func (h *SessionHandler) SuggestCaptions(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	flight, err := s.SuggestCaptions(c.Request.Context())
	if err != nil {
		respondError(c, err, s)
		return
	}
	h.finish(c, s, flight)
}

// EditImage handles POST /api/v1/sessions/:id/edit.
func (h *SessionHandler) EditImage(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	flight, err := s.EditImage(c.Request.Context(), req.Instruction)
	if err != nil {
		respondError(c, err, s)
		return
	}
	h.finish(c, s, flight)
}

// finish either returns immediately (?async=true) or waits for the operation.
func (h *SessionHandler) finish(c *gin.Context, s *studio.Studio, flight *studio.Flight) {
	if async, _ := strconv.ParseBool(c.Query("async")); async {
		c.JSON(http.StatusAccepted, newSessionView(s))
		return
	}

	if err := flight.Wait(c.Request.Context()); err != nil {
		if c.Request.Context().Err() != nil {
			// client went away; the operation keeps running
			return
		}
		respondError(c, err, s)
		return
	}
	c.JSON(http.StatusOK, newSessionView(s))
}

// Reset handles POST /api/v1/sessions/:id/reset.
func (h *SessionHandler) Reset(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.Reset()
	c.JSON(http.StatusOK, newSessionView(s))
}

// Preview handles GET /api/v1/sessions/:id/preview.png.
func (h *SessionHandler) Preview(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	data, err := s.Preview(c.Request.Context())
	if err != nil {
		respondError(c, err, s)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", data)
}

// Export handles GET /api/v1/sessions/:id/export.
func (h *SessionHandler) Export(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	result, err := s.Export(c.Request.Context())
	if err != nil {
		respondError(c, err, s)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
	if result.URL != "" {
		c.Header("X-Export-URL", result.URL)
	}
	c.Data(http.StatusOK, "image/png", result.Data)
}
