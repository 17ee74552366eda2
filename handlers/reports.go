package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sitework/sitework/internal/permissions"
	"github.com/sitework/sitework/internal/reports"
	"github.com/sitework/sitework/pkg/middleware"
	"github.com/sitework/sitework/pkg/response"
)

type ReportHandler struct {
	svc *reports.Service
}

func NewReportHandler(svc *reports.Service) *ReportHandler { return &ReportHandler{svc: svc} }

func (h *ReportHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/reports", middleware.RequirePermission(permissions.ReportsRead))
	g.GET("/dashboard", h.Dashboard)
	g.GET("/projects/:id", h.ProjectSummary)
}

func (h *ReportHandler) Dashboard(c *gin.Context) {
	d, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, d)
}

func (h *ReportHandler) ProjectSummary(c *gin.Context) {
	s, err := h.svc.ProjectSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, s)
}
