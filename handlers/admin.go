package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/cleanup"
	"github.com/sitework/sitework/internal/database"
	"github.com/sitework/sitework/internal/permissions"
	"github.com/sitework/sitework/pkg/logger"
	"github.com/sitework/sitework/pkg/middleware"
	"github.com/sitework/sitework/pkg/response"
)

// HealthFunc reports database statistics. A nil HealthFunc means no database
// is configured.
type HealthFunc func(ctx context.Context) (*database.Health, error)

type AdminHandler struct {
	cleaner *cleanup.Cleaner
	opts    cleanup.Options
	health  HealthFunc
}

// NewAdminHandler takes the configured cleanup defaults; requests may narrow
// them.
func NewAdminHandler(cleaner *cleanup.Cleaner, defaults cleanup.Options, health HealthFunc) *AdminHandler {
	return &AdminHandler{cleaner: cleaner, opts: defaults, health: health}
}

func (h *AdminHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/admin")
	g.POST("/cleanup", middleware.RequirePermission(permissions.AdminCleanup), h.Cleanup)
	g.GET("/db-health", middleware.RequirePermission(permissions.AdminDBHealth), h.DBHealth)
}

// Cleanup runs one orphan sweep. Query parameters: dry_run, older_than (a Go
// duration such as 48h) and bucket.
func (h *AdminHandler) Cleanup(c *gin.Context) {
	opts := h.opts
	if v := c.Query("dry_run"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.Error(c, apperr.Field("dry_run", "must be a boolean"))
			return
		}
		opts.DryRun = b
	}
	if v := c.Query("older_than"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			response.Error(c, apperr.Field("older_than", "must be a non-negative duration"))
			return
		}
		opts.OlderThan = d
	}
	if b := c.Query("bucket"); b != "" {
		known := false
		for _, x := range h.opts.Buckets {
			known = known || x == b
		}
		if !known {
			response.Error(c, apperr.Field("bucket", "unknown bucket"))
			return
		}
		opts.Buckets = []string{b}
	}
	rep := h.cleaner.Run(c.Request.Context(), opts)
	logger.With(logger.Fields{"user": middleware.CurrentUserID(c), "dryRun": opts.DryRun}).Infof("manual cleanup run")
	response.OK(c, rep)
}

func (h *AdminHandler) DBHealth(c *gin.Context) {
	if h.health == nil {
		response.Abort(c, apperr.KindUnavailable, "database is not configured")
		return
	}
	hl, err := h.health(c.Request.Context())
	if err != nil {
		response.Error(c, apperr.Unavailable("database health check failed", err))
		return
	}
	response.OK(c, hl)
}
