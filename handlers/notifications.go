package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sitework/sitework/internal/notifications"
	"github.com/sitework/sitework/internal/query"
	"github.com/sitework/sitework/pkg/middleware"
	"github.com/sitework/sitework/pkg/response"
)

// NotificationHandler serves the caller's own inbox; no permission beyond
// authentication is needed.
type NotificationHandler struct {
	svc *notifications.Service
}

func NewNotificationHandler(svc *notifications.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func (h *NotificationHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/notifications")
	g.GET("", h.List)
	g.POST("/:id/read", h.MarkRead)
}

func (h *NotificationHandler) List(c *gin.Context) {
	p := query.Parse(c.Request.URL.Query(), query.Options{})
	unread := c.Query("unread") == "true"
	items, total, err := h.svc.ListMine(c.Request.Context(), middleware.CurrentUserID(c), unread, p)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []*notifications.Notification{}
	}
	response.List(c, items, query.NewMeta(p, total))
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.svc.MarkRead(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": c.Param("id"), "read": true})
}
