package models

import (
	"strings"
	"time"

	"github.com/sitework/sitework/internal/apperr"
)

// Base carries the identity and timestamps shared by every stored row.
type Base struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

func (b *Base) GetID() string   { return b.ID }
func (b *Base) SetID(id string) { b.ID = id }

// Stamp sets UpdatedAt, and CreatedAt when it is still zero.
func (b *Base) Stamp(now time.Time) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

func (b *Base) Created() time.Time { return b.CreatedAt }

func (b *Base) SetCreated(t time.Time) { b.CreatedAt = t }

// Client is a customer company commissioning projects.
type Client struct {
	Base
	Name          string `json:"name" db:"name" binding:"required,max=200"`
	CompanyType   string `json:"companyType" db:"company_type" binding:"omitempty,oneof=individual company government"`
	ContactPerson string `json:"contactPerson" db:"contact_person" binding:"max=200"`
	Email         string `json:"email" db:"email" binding:"omitempty,email"`
	Phone         string `json:"phone" db:"phone" binding:"max=50"`
	Address       string `json:"address" db:"address"`
	Notes         string `json:"notes" db:"notes"`
	CreatedBy     string `json:"createdBy" db:"created_by"`
}

func (c *Client) SearchText() string {
	return strings.ToLower(c.Name + " " + c.ContactPerson + " " + c.Email)
}

func (c *Client) FilterValue(key string) string {
	switch key {
	case "company_type":
		return c.CompanyType
	case "created_by":
		return c.CreatedBy
	}
	return ""
}

const (
	SupplierPending     = "pending"
	SupplierApproved    = "approved"
	SupplierBlacklisted = "blacklisted"
)

// Supplier provides materials or subcontracted work.
type Supplier struct {
	Base
	Name          string   `json:"name" db:"name" binding:"required,max=200"`
	Specialties   []string `json:"specialties" db:"specialties"`
	ContactPerson string   `json:"contactPerson" db:"contact_person"`
	Email         string   `json:"email" db:"email" binding:"omitempty,email"`
	Phone         string   `json:"phone" db:"phone" binding:"max=50"`
	Status        string   `json:"status" db:"status" binding:"omitempty,oneof=pending approved blacklisted"`
	Rating        float64  `json:"rating" db:"rating" binding:"gte=0,lte=5"`
}

func (s *Supplier) SearchText() string {
	return strings.ToLower(s.Name + " " + s.ContactPerson + " " + strings.Join(s.Specialties, " "))
}

func (s *Supplier) FilterValue(key string) string {
	if key == "status" {
		return s.Status
	}
	return ""
}

const (
	ProjectPlanning  = "planning"
	ProjectActive    = "active"
	ProjectOnHold    = "on_hold"
	ProjectCompleted = "completed"
	ProjectCancelled = "cancelled"
)

// Project is a construction project for a client.
type Project struct {
	Base
	Code             string     `json:"code" db:"code" binding:"required,max=50"`
	Name             string     `json:"name" db:"name" binding:"required,max=200"`
	ClientID         string     `json:"clientId" db:"client_id" binding:"required"`
	Status           string     `json:"status" db:"status" binding:"omitempty,oneof=planning active on_hold completed cancelled"`
	Budget           float64    `json:"budget" db:"budget" binding:"gte=0"`
	StartDate        *time.Time `json:"startDate,omitempty" db:"start_date"`
	EndDate          *time.Time `json:"endDate,omitempty" db:"end_date"`
	ProjectManagerID string     `json:"projectManagerId" db:"project_manager_id"`
	Location         string     `json:"location" db:"location"`
}

// Validate rejects an end date before the start date.
func (p *Project) Validate() error {
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return apperr.Field("endDate", "must not be before startDate")
	}
	return nil
}

func (p *Project) SearchText() string {
	return strings.ToLower(p.Code + " " + p.Name + " " + p.Location)
}

func (p *Project) FilterValue(key string) string {
	switch key {
	case "status":
		return p.Status
	case "client_id":
		return p.ClientID
	case "project_manager_id":
		return p.ProjectManagerID
	}
	return ""
}

const (
	DocDraft           = "draft"
	DocPendingApproval = "pending_approval"
	DocSubmitted       = "submitted"
	DocApproved        = "approved"
	DocRejected        = "rejected"
)

// MaterialSpec is a material line item specified for a project.
type MaterialSpec struct {
	Base
	ProjectID     string  `json:"projectId" db:"project_id" binding:"required"`
	SupplierID    string  `json:"supplierId" db:"supplier_id"`
	Name          string  `json:"name" db:"name" binding:"required,max=200"`
	Category      string  `json:"category" db:"category"`
	Quantity      float64 `json:"quantity" db:"quantity" binding:"gte=0"`
	Unit          string  `json:"unit" db:"unit" binding:"max=20"`
	UnitPrice     float64 `json:"unitPrice" db:"unit_price" binding:"gte=0"`
	Status        string  `json:"status" db:"status"`
	AttachmentKey string  `json:"attachmentKey" db:"attachment_key"`
	CreatedBy     string  `json:"createdBy" db:"created_by"`
}

// TotalCost is quantity times unit price.
func (m *MaterialSpec) TotalCost() float64 { return m.Quantity * m.UnitPrice }

func (m *MaterialSpec) SearchText() string {
	return strings.ToLower(m.Name + " " + m.Category)
}

func (m *MaterialSpec) FilterValue(key string) string {
	switch key {
	case "status":
		return m.Status
	case "project_id":
		return m.ProjectID
	case "supplier_id":
		return m.SupplierID
	case "category":
		return m.Category
	}
	return ""
}

// ConstructionReport is a daily site report.
type ConstructionReport struct {
	Base
	ProjectID   string    `json:"projectId" db:"project_id" binding:"required"`
	ReportDate  time.Time `json:"reportDate" db:"report_date" binding:"required"`
	Weather     string    `json:"weather" db:"weather"`
	WorkSummary string    `json:"workSummary" db:"work_summary" binding:"required"`
	Issues      string    `json:"issues" db:"issues"`
	PhotoKeys   []string  `json:"photoKeys" db:"photo_keys"`
	Status      string    `json:"status" db:"status"`
	CreatedBy   string    `json:"createdBy" db:"created_by"`
}

func (r *ConstructionReport) SearchText() string {
	return strings.ToLower(r.WorkSummary + " " + r.Issues)
}

func (r *ConstructionReport) FilterValue(key string) string {
	switch key {
	case "status":
		return r.Status
	case "project_id":
		return r.ProjectID
	case "created_by":
		return r.CreatedBy
	}
	return ""
}
