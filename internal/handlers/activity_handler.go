package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crmhub/internal/models"
	"crmhub/internal/services"
)

type ActivityHandler struct {
	Service *services.ActivityService
}

func NewActivityHandler(service *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{Service: service}
}

func (h *ActivityHandler) List(c *gin.Context) {
	list, err := h.Service.List(c.Request.Context(), models.ActivityFilter{
		Query:  c.Query("q"),
		Type:   models.ActivityType(c.Query("type")),
		Status: models.TaskStatus(c.Query("status")),
		DealID: c.Query("deal_id"),
		Limit:  queryInt(c, "limit", 0),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ActivityHandler) GetByID(c *gin.Context) {
	a, err := h.Service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *ActivityHandler) Create(c *gin.Context) {
	var in services.ActivityInput
	if !bindJSON(c, &in) {
		return
	}
	a, err := h.Service.Create(c.Request.Context(), in, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *ActivityHandler) Update(c *gin.Context) {
	var in services.ActivityInput
	if !bindJSON(c, &in) {
		return
	}
	a, err := h.Service.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *ActivityHandler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status models.TaskStatus `json:"status" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.Service.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *ActivityHandler) Complete(c *gin.Context) {
	a, err := h.Service.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *ActivityHandler) Delete(c *gin.Context) {
	if err := h.Service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
