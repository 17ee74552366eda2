// Package reports aggregates dashboard and per-project figures.
package reports

import (
	"context"
	"time"

	"github.com/sitework/sitework/internal/models"
)

// RecentWindow is how far back "recent" site reports are counted.
const RecentWindow = 7 * 24 * time.Hour

type Dashboard struct {
	ProjectsByStatus map[string]int `json:"projectsByStatus"`
	TotalProjects    int            `json:"totalProjects"`
	PendingApprovals int            `json:"pendingApprovals"`
	ActiveSuppliers  int            `json:"activeSuppliers"`
	RecentReports    int            `json:"recentReports"`
	GeneratedAt      time.Time      `json:"generatedAt"`
}

type ProjectSummary struct {
	Project             *models.Project `json:"project"`
	MaterialsByStatus   map[string]int  `json:"materialsByStatus"`
	MaterialCost        float64         `json:"materialCost"`
	ConstructionReports int             `json:"constructionReports"`
	OpenWorkflows       int             `json:"openWorkflows"`
}

// Store computes the raw figures.
type Store interface {
	Dashboard(ctx context.Context, since time.Time) (*Dashboard, error)
	ProjectSummary(ctx context.Context, projectID string) (*ProjectSummary, error)
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := s.now()
	d, err := s.store.Dashboard(ctx, now.Add(-RecentWindow))
	if err != nil {
		return nil, err
	}
	d.GeneratedAt = now
	return d, nil
}

func (s *Service) ProjectSummary(ctx context.Context, projectID string) (*ProjectSummary, error) {
	return s.store.ProjectSummary(ctx, projectID)
}
