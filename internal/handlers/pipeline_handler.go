package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crmhub/internal/services"
)

// PipelineHandler serves the pipeline settings: pipelines and their stages.
type PipelineHandler struct {
	Service *services.PipelineService
}

func NewPipelineHandler(service *services.PipelineService) *PipelineHandler {
	return &PipelineHandler{Service: service}
}

func (h *PipelineHandler) List(c *gin.Context) {
	list, err := h.Service.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// pipelineParam maps the "default" alias in :id to the default pipeline.
func pipelineParam(c *gin.Context) string {
	if id := c.Param("id"); id != "default" {
		return id
	}
	return ""
}

func (h *PipelineHandler) GetByID(c *gin.Context) {
	p, err := h.Service.Resolve(c.Request.Context(), pipelineParam(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PipelineHandler) CreateStage(c *gin.Context) {
	var in services.StageInput
	if !bindJSON(c, &in) {
		return
	}
	st, err := h.Service.CreateStage(c.Request.Context(), pipelineParam(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (h *PipelineHandler) UpdateStage(c *gin.Context) {
	var in services.StageInput
	if !bindJSON(c, &in) {
		return
	}
	st, err := h.Service.UpdateStage(c.Request.Context(), pipelineParam(c), c.Param("stage_id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *PipelineHandler) DeleteStage(c *gin.Context) {
	if err := h.Service.DeleteStage(c.Request.Context(), pipelineParam(c), c.Param("stage_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
