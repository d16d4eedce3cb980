package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crmhub/internal/models"
	"crmhub/internal/services"
)

type LeadHandler struct {
	Service *services.LeadService
}

func NewLeadHandler(service *services.LeadService) *LeadHandler {
	return &LeadHandler{Service: service}
}

func (h *LeadHandler) Create(c *gin.Context) {
	var in services.LeadInput
	if !bindJSON(c, &in) {
		return
	}
	// владельцем по умолчанию становится автор
	lead, err := h.Service.Create(c.Request.Context(), in, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lead)
}

func (h *LeadHandler) Update(c *gin.Context) {
	var in services.LeadInput
	if !bindJSON(c, &in) {
		return
	}
	lead, err := h.Service.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

func (h *LeadHandler) GetByID(c *gin.Context) {
	lead, err := h.Service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

func (h *LeadHandler) Delete(c *gin.Context) {
	if err := h.Service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LeadHandler) List(c *gin.Context) {
	leads, err := h.Service.List(c.Request.Context(), models.LeadFilter{
		Query:  c.Query("q"),
		Status: models.LeadStatus(c.Query("status")),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, leads)
}

// StatusCounts feeds the funnel cards above the lead list.
func (h *LeadHandler) StatusCounts(c *gin.Context) {
	counts, err := h.Service.StatusCounts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

// @Summary      Конвертация лида
// @Description  Создаёт контакт (и опционально сделку) из лида и помечает лид converted
// @Tags         Leads
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                 true  "Lead ID"
// @Param        body  body      services.ConvertInput  false "Параметры сделки"
// @Success      200   {object}  services.ConvertResult
// @Failure      404   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /leads/{id}/convert [post]
func (h *LeadHandler) Convert(c *gin.Context) {
	var in services.ConvertInput
	if c.Request.ContentLength != 0 && !bindJSON(c, &in) {
		return
	}
	res, err := h.Service.Convert(c.Request.Context(), c.Param("id"), in, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
