package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sentipulse/sentipulse-go/internal/models"
	"github.com/sentipulse/sentipulse-go/internal/utils"
)

// PipelineRunner is the pipeline service surface the handler consumes.
type PipelineRunner interface {
	Trigger(ctx context.Context) (*models.PipelineRun, error)
	GetRun(ctx context.Context, id string) (*models.PipelineRun, error)
	ListRuns(ctx context.Context, limit int) ([]models.PipelineRun, error)
}

// PipelineHandler serves pipeline triggering and run inspection.
type PipelineHandler struct {
	pipeline PipelineRunner
}

// NewPipelineHandler creates a pipeline handler.
func NewPipelineHandler(pipeline PipelineRunner) *PipelineHandler {
	return &PipelineHandler{pipeline: pipeline}
}

// Trigger serves POST /api/v1/pipeline/runs. A run already in progress
// answers 409.
func (h *PipelineHandler) Trigger(c *gin.Context) {
	run, err := h.pipeline.Trigger(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, run)
}

// GetRun serves GET /api/v1/pipeline/runs/:id.
func (h *PipelineHandler) GetRun(c *gin.Context) {
	run, err := h.pipeline.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// ListRuns serves GET /api/v1/pipeline/runs, newest first.
func (h *PipelineHandler) ListRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(c, utils.NewValidationErrorf("invalid limit %q", raw))
			return
		}
		limit = parsed
	}

	runs, err := h.pipeline.ListRuns(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(runs),
		"runs":  runs,
	})
}
