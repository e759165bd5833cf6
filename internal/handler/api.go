package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"coding-interface/internal/dataset"
	"coding-interface/internal/models"
	"coding-interface/internal/service"
	"coding-interface/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler handles HTTP requests
type Handler struct {
	coder  *service.Coder
	logger *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(coder *service.Coder, logger *zap.Logger) *Handler {
	return &Handler{
		coder:  coder,
		logger: logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		// Session navigation and labeling
		api.GET("/session", h.GetSession)
		api.POST("/session/advance", h.Advance)
		api.POST("/session/retreat", h.Retreat)
		api.POST("/session/jump", h.Jump)
		api.POST("/session/reset", h.Reset)
		api.POST("/session/save", h.SaveLabel)
		api.POST("/session/resume", h.Resume)

		// Data source and taxonomy
		api.POST("/dataset", h.UploadDataset)
		api.GET("/taxonomy", h.GetTaxonomy)
		api.GET("/progress", h.GetProgress)

		// Export
		api.GET("/export/csv", h.ExportCSV)
	}

	// Browser UI
	r.GET("/", h.Index)

	// Health check
	r.GET("/health", h.HealthCheck)
}

// fail maps session errors onto HTTP statuses. Everything here is recoverable:
// the operation was aborted and prior session state is unchanged.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, service.ErrNoDataset) {
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// GetSession returns the current cursor view
func (h *Handler) GetSession(c *gin.Context) {
	view, err := h.coder.Session()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Advance moves to the next item
func (h *Handler) Advance(c *gin.Context) {
	view, err := h.coder.Advance()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Retreat moves to the previous item
func (h *Handler) Retreat(c *gin.Context) {
	view, err := h.coder.Retreat()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Jump moves to an arbitrary position
func (h *Handler) Jump(c *gin.Context) {
	var req models.JumpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.coder.Jump(req.Position)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Reset returns to the first item
func (h *Handler) Reset(c *gin.Context) {
	view, err := h.coder.Reset()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SaveLabel stores one labeling decision
func (h *Handler) SaveLabel(c *gin.Context) {
	var req models.SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.coder.Save(req)
	if err != nil {
		if !errors.Is(err, session.ErrUnknownClassification) &&
			!errors.Is(err, session.ErrNotesTooLong) &&
			!errors.Is(err, session.ErrUnknownItem) &&
			!errors.Is(err, service.ErrNoDataset) {
			h.logger.Error("Failed to save label", zap.Error(err))
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Resume loads a previously exported results file to continue a session
func (h *Handler) Resume(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "resume file is required"})
		return
	}

	reader, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open resume file"})
		return
	}
	defer reader.Close()

	result, err := h.coder.Resume(reader)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UploadDataset replaces the loaded coding table
func (h *Handler) UploadDataset(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coding file is required"})
		return
	}

	reader, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open coding file"})
		return
	}
	defer reader.Close()

	count, err := h.coder.LoadDataset(reader)
	if err != nil {
		if !errors.Is(err, dataset.ErrMissingColumns) {
			h.logger.Error("Failed to load coding table", zap.Error(err))
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": count})
}

// GetTaxonomy returns the configured classification table
func (h *Handler) GetTaxonomy(c *gin.Context) {
	c.JSON(http.StatusOK, h.coder.Taxonomy())
}

// GetProgress returns labeled/total counts
func (h *Handler) GetProgress(c *gin.Context) {
	view, err := h.coder.Session()
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"labeled": view.LabeledCount,
		"total":   view.Total,
	})
}

// ExportCSV downloads the results table
func (h *Handler) ExportCSV(c *gin.Context) {
	var buf bytes.Buffer
	dropped, err := h.coder.ExportCSV(&buf)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s", h.coder.ExportFilename(time.Now())))
	if dropped > 0 {
		c.Header("X-Dropped-Records", fmt.Sprintf("%d", dropped))
	}

	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "coding-interface",
		"version": "1.0.0",
	})
}
