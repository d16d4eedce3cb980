package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"crmhub/internal/models"
	"crmhub/internal/realtime"
	"crmhub/internal/services"
)

type DealHandler struct {
	Service *services.DealService
	Hub     *realtime.BoardHub
}

func NewDealHandler(service *services.DealService, hub *realtime.BoardHub) *DealHandler {
	return &DealHandler{Service: service, Hub: hub}
}

func (h *DealHandler) Create(c *gin.Context) {
	var in services.DealInput
	if !bindJSON(c, &in) {
		return
	}
	deal, err := h.Service.Create(c.Request.Context(), in, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, deal)
}

func (h *DealHandler) Update(c *gin.Context) {
	var in services.DealInput
	if !bindJSON(c, &in) {
		return
	}
	deal, err := h.Service.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deal)
}

func (h *DealHandler) GetByID(c *gin.Context) {
	deal, err := h.Service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deal)
}

func (h *DealHandler) Delete(c *gin.Context) {
	if err := h.Service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DealHandler) List(c *gin.Context) {
	deals, err := h.Service.List(c.Request.Context(), models.DealFilter{
		PipelineID: c.Query("pipeline_id"),
		StageID:    c.Query("stage_id"),
		Status:     models.DealStatus(c.Query("status")),
		Query:      c.Query("q"),
		Limit:      queryInt(c, "limit", 0),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deals)
}

// @Summary      Доска сделок
// @Description  Колонки по этапам воронки и метрики по всем сделкам
// @Tags         Deals
// @Produce      json
// @Security     BearerAuth
// @Param        pipeline_id  query     string  false  "Pipeline ID (по умолчанию основная воронка)"
// @Param        q            query     string  false  "Поиск по названию, контакту, компании"
// @Success      200          {object}  services.Board
// @Router       /deals/board [get]
func (h *DealHandler) Board(c *gin.Context) {
	board, err := h.Service.Board(c.Request.Context(), c.Query("pipeline_id"), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func (h *DealHandler) Metrics(c *gin.Context) {
	m, err := h.Service.Metrics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// @Summary      Перенос сделки на этап
// @Description  Этап is_won/is_lost закрывает сделку и проставляет actual_close_date
// @Tags         Deals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string  true  "Deal ID"
// @Success      200   {object}  models.Deal
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /deals/{id}/stage [put]
func (h *DealHandler) Move(c *gin.Context) {
	var req struct {
		StageID string `json:"stage_id" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	deal, err := h.Service.Move(c.Request.Context(), c.Param("id"), req.StageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deal)
}

// Events streams changes on one pipeline board as server-sent events.
// Without pipeline_id the default pipeline is watched.
func (h *DealHandler) Events(c *gin.Context) {
	if h.Hub == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "board events disabled"})
		return
	}
	p, err := h.Service.ResolvePipeline(c.Request.Context(), c.Query("pipeline_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	events := h.Hub.Subscribe(c.Request.Context(), p.ID)

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"pipeline_id": p.ID})
	c.Writer.Flush()
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(string(ev.Type), ev)
		return true
	})
}
