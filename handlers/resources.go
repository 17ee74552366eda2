package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/sitework/sitework/internal/approval"
	"github.com/sitework/sitework/internal/crud"
	"github.com/sitework/sitework/internal/documents"
	"github.com/sitework/sitework/internal/models"
	"github.com/sitework/sitework/internal/permissions"
	"github.com/sitework/sitework/internal/query"
	"github.com/sitework/sitework/pkg/middleware"
	"github.com/sitework/sitework/pkg/response"
)

// Resource exposes list/create/get/update/delete for one crud service. The
// permission check runs before the body is bound, so an unauthorised caller
// gets 403 whatever it sends.
type Resource[T crud.Entity] struct {
	Path    string
	Service *crud.Service[T]
	Read    string
	Write   string
	Query   query.Options
	New     func() T
	// OnCreate fills server-owned fields on a new row.
	OnCreate func(c *gin.Context, e T)
	// OnUpdate copies server-owned fields from the stored row.
	OnUpdate func(existing, next T)
}

// Register installs the routes and returns the resource group so callers can
// add sub-resources.
func (r *Resource[T]) Register(rg *gin.RouterGroup) *gin.RouterGroup {
	g := rg.Group(r.Path)
	read := middleware.RequirePermission(r.Read)
	write := middleware.RequirePermission(r.Write)
	g.GET("", read, r.list)
	g.POST("", write, r.create)
	g.GET("/:id", read, r.get)
	g.PUT("/:id", write, r.update)
	g.DELETE("/:id", write, r.delete)
	return g
}

func (r *Resource[T]) list(c *gin.Context) {
	p := query.Parse(c.Request.URL.Query(), r.Query)
	items, total, err := r.Service.List(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	response.List(c, items, query.NewMeta(p, total))
}

func (r *Resource[T]) create(c *gin.Context) {
	e := r.New()
	if err := c.ShouldBindJSON(e); err != nil {
		response.Error(c, response.BindError(err))
		return
	}
	e.SetID("")
	if r.OnCreate != nil {
		r.OnCreate(c, e)
	}
	out, err := r.Service.Create(c.Request.Context(), e)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, out)
}

func (r *Resource[T]) get(c *gin.Context) {
	e, err := r.Service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

func (r *Resource[T]) update(c *gin.Context) {
	next := r.New()
	if err := c.ShouldBindJSON(next); err != nil {
		response.Error(c, response.BindError(err))
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if r.OnUpdate != nil {
		existing, err := r.Service.Get(ctx, id)
		if err != nil {
			response.Error(c, err)
			return
		}
		r.OnUpdate(existing, next)
	}
	out, err := r.Service.Update(ctx, id, next)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, out)
}

func (r *Resource[T]) delete(c *gin.Context) {
	if err := r.Service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": c.Param("id"), "deleted": true})
}

func ClientResource(svc *crud.Service[*models.Client]) *Resource[*models.Client] {
	return &Resource[*models.Client]{
		Path:    "/clients",
		Service: svc,
		Read:    permissions.ClientsRead,
		Write:   permissions.ClientsWrite,
		Query: query.Options{
			SortColumns: []string{"name"},
			DefaultSort: "name",
			Filters:     []string{"company_type", "created_by"},
		},
		New:      func() *models.Client { return &models.Client{} },
		OnCreate: func(c *gin.Context, e *models.Client) { e.CreatedBy = middleware.CurrentUserID(c) },
		OnUpdate: func(existing, next *models.Client) { next.CreatedBy = existing.CreatedBy },
	}
}

func SupplierResource(svc *crud.Service[*models.Supplier]) *Resource[*models.Supplier] {
	return &Resource[*models.Supplier]{
		Path:    "/suppliers",
		Service: svc,
		Read:    permissions.SuppliersRead,
		Write:   permissions.SuppliersWrite,
		Query: query.Options{
			SortColumns: []string{"name", "rating"},
			DefaultSort: "name",
			Filters:     []string{"status"},
		},
		New: func() *models.Supplier { return &models.Supplier{} },
		OnCreate: func(_ *gin.Context, e *models.Supplier) {
			if e.Status == "" {
				e.Status = models.SupplierPending
			}
			if e.Specialties == nil {
				e.Specialties = []string{}
			}
		},
		OnUpdate: func(existing, next *models.Supplier) {
			if next.Status == "" {
				next.Status = existing.Status
			}
			if next.Specialties == nil {
				next.Specialties = []string{}
			}
		},
	}
}

func ProjectResource(svc *crud.Service[*models.Project]) *Resource[*models.Project] {
	return &Resource[*models.Project]{
		Path:    "/projects",
		Service: svc,
		Read:    permissions.ProjectsRead,
		Write:   permissions.ProjectsWrite,
		Query: query.Options{
			SortColumns: []string{"code", "name", "budget", "start_date", "end_date"},
			DefaultSort: "created_at",
			Filters:     []string{"status", "client_id", "project_manager_id"},
		},
		New: func() *models.Project { return &models.Project{} },
		OnCreate: func(_ *gin.Context, e *models.Project) {
			if e.Status == "" {
				e.Status = models.ProjectPlanning
			}
		},
		OnUpdate: func(existing, next *models.Project) {
			if next.Status == "" {
				next.Status = existing.Status
			}
		},
	}
}

// MaterialSpecResource keeps status server-owned: it changes only through
// the approval workflow.
func MaterialSpecResource(svc *crud.Service[*models.MaterialSpec]) *Resource[*models.MaterialSpec] {
	return &Resource[*models.MaterialSpec]{
		Path:    "/material-specs",
		Service: svc,
		Read:    permissions.MaterialsRead,
		Write:   permissions.MaterialsWrite,
		Query: query.Options{
			SortColumns: []string{"name", "category", "quantity", "unit_price", "status"},
			DefaultSort: "created_at",
			Filters:     []string{"status", "project_id", "supplier_id", "category"},
		},
		New: func() *models.MaterialSpec { return &models.MaterialSpec{} },
		OnCreate: func(c *gin.Context, e *models.MaterialSpec) {
			e.Status = models.DocDraft
			e.CreatedBy = middleware.CurrentUserID(c)
		},
		OnUpdate: func(existing, next *models.MaterialSpec) {
			next.Status = existing.Status
			next.CreatedBy = existing.CreatedBy
		},
	}
}

func ConstructionReportResource(svc *crud.Service[*models.ConstructionReport]) *Resource[*models.ConstructionReport] {
	return &Resource[*models.ConstructionReport]{
		Path:    "/construction-reports",
		Service: svc,
		Read:    permissions.SiteReportsRead,
		Write:   permissions.SiteReportsWrite,
		Query: query.Options{
			SortColumns: []string{"report_date", "status"},
			DefaultSort: "report_date",
			Filters:     []string{"status", "project_id", "created_by"},
		},
		New: func() *models.ConstructionReport { return &models.ConstructionReport{} },
		OnCreate: func(c *gin.Context, e *models.ConstructionReport) {
			e.Status = models.DocDraft
			e.CreatedBy = middleware.CurrentUserID(c)
			if e.PhotoKeys == nil {
				e.PhotoKeys = []string{}
			}
		},
		OnUpdate: func(existing, next *models.ConstructionReport) {
			next.Status = existing.Status
			next.CreatedBy = existing.CreatedBy
			if next.PhotoKeys == nil {
				next.PhotoKeys = []string{}
			}
		},
	}
}

// RegisterMilestones adds the milestones placeholder under a project group.
func RegisterMilestones(projects *gin.RouterGroup) {
	projects.GET("/:id/milestones", middleware.RequirePermission(permissions.ProjectsRead), func(c *gin.Context) {
		response.OK(c, []interface{}{})
	})
}

// SubmitHandler opens approval workflows for documents.
type SubmitHandler struct {
	submitter *documents.Submitter
}

func NewSubmitHandler(s *documents.Submitter) *SubmitHandler { return &SubmitHandler{submitter: s} }

// Register adds POST /:id/submit to the material spec and site report groups.
func (h *SubmitHandler) Register(specs, reports *gin.RouterGroup) {
	perm := middleware.RequirePermission(permissions.ApprovalsCreate)
	specs.POST("/:id/submit", perm, h.submit(h.submitter.SubmitMaterialSpec))
	reports.POST("/:id/submit", perm, h.submit(h.submitter.SubmitConstructionReport))
}

type submitFunc = func(ctx context.Context, actor, id string, in documents.SubmitInput) (*approval.Workflow, map[string]string, error)

func (h *SubmitHandler) submit(fn submitFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in documents.SubmitInput
		if err := c.ShouldBindJSON(&in); err != nil {
			response.Error(c, response.BindError(err))
			return
		}
		w, failed, err := fn(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), in)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, gin.H{"workflow": w, "notificationErrors": failed})
	}
}
