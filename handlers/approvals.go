package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/sitework/sitework/internal/approval"
	"github.com/sitework/sitework/internal/permissions"
	"github.com/sitework/sitework/internal/query"
	"github.com/sitework/sitework/pkg/middleware"
	"github.com/sitework/sitework/pkg/response"
)

type ApprovalHandler struct {
	svc *approval.Service
}

func NewApprovalHandler(svc *approval.Service) *ApprovalHandler { return &ApprovalHandler{svc: svc} }

type actionRequest struct {
	Comments string `json:"comments" binding:"max=2000"`
}

func (h *ApprovalHandler) Register(rg *gin.RouterGroup) {
	read := middleware.RequirePermission(permissions.ApprovalsRead)
	act := middleware.RequirePermission(permissions.ApprovalsAct)
	g := rg.Group("/approvals")
	g.POST("", middleware.RequirePermission(permissions.ApprovalsCreate), h.Create)
	g.GET("", read, h.List)
	g.GET("/pending", read, h.Pending)
	g.GET("/:id", read, h.Get)
	g.GET("/:id/actions", read, h.Actions)
	g.POST("/:id/approve", act, h.Approve)
	g.POST("/:id/reject", act, h.Reject)
}

func (h *ApprovalHandler) Create(c *gin.Context) {
	var in approval.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, response.BindError(err))
		return
	}
	w, failed, err := h.svc.Create(c.Request.Context(), middleware.CurrentUserID(c), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"workflow": w, "notificationErrors": failed})
}

// List accepts status, document_id, document_type and approver filters.
func (h *ApprovalHandler) List(c *gin.Context) {
	p := query.Parse(c.Request.URL.Query(), query.Options{})
	f := approval.Filter{
		Status:       approval.Status(c.Query("status")),
		DocumentID:   c.Query("document_id"),
		DocumentType: c.Query("document_type"),
		Approver:     c.Query("approver"),
	}
	items, total, err := h.svc.List(c.Request.Context(), f, p)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []*approval.Workflow{}
	}
	response.List(c, items, query.NewMeta(p, total))
}

// Pending lists the workflows the caller can act on now.
func (h *ApprovalHandler) Pending(c *gin.Context) {
	items, err := h.svc.Pending(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

func (h *ApprovalHandler) Get(c *gin.Context) {
	w, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"workflow": w, "nextApprovers": approval.NextApprovers(w)})
}

func (h *ApprovalHandler) Actions(c *gin.Context) {
	actions, err := h.svc.Actions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, actions)
}

func (h *ApprovalHandler) Approve(c *gin.Context) {
	h.act(c, h.svc.Approve)
}

func (h *ApprovalHandler) Reject(c *gin.Context) {
	h.act(c, h.svc.Reject)
}

func (h *ApprovalHandler) act(c *gin.Context, fn func(ctx context.Context, id, actor, comments string) (*approval.Result, error)) {
	var req actionRequest
	// body is optional
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, response.BindError(err))
			return
		}
	}
	res, err := fn(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), req.Comments)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}
