package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crmhub/internal/services"
)

type ReportHandler struct {
	Service          *services.ReportService
	DashboardService *services.DashboardService
}

func NewReportHandler(service *services.ReportService, dashboard *services.DashboardService) *ReportHandler {
	return &ReportHandler{Service: service, DashboardService: dashboard}
}

// GET /dashboard
func (h *ReportHandler) Dashboard(c *gin.Context) {
	d, err := h.DashboardService.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// @Summary      PDF-отчёт по воронке
// @Tags         Reports
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        pipeline_id  query  string  false  "Pipeline ID"
// @Param        download     query  bool    false  "attachment вместо inline"
// @Success      200
// @Router       /reports/pipeline.pdf [get]
func (h *ReportHandler) PipelinePDF(c *gin.Context) {
	// рендерим в буфер, чтобы при ошибке вернуть JSON, а не обрезанный PDF
	var buf bytes.Buffer
	if err := h.Service.WritePipeline(c.Request.Context(), &buf, c.Query("pipeline_id")); err != nil {
		respondError(c, err)
		return
	}

	disposition := "inline"
	if c.Query("download") == "true" {
		disposition = "attachment"
	}
	name := fmt.Sprintf("pipeline_%s.pdf", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`%s; filename="%s"`, disposition, name))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
