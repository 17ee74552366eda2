package reports

import (
	"context"
	"time"

	"github.com/sitework/sitework/internal/approval"
	"github.com/sitework/sitework/internal/crud"
	"github.com/sitework/sitework/internal/models"
	"github.com/sitework/sitework/internal/query"
)

// MemoryStore aggregates over the in-memory repositories.
type MemoryStore struct {
	Projects  *crud.MemoryRepo[*models.Project]
	Suppliers *crud.MemoryRepo[*models.Supplier]
	Specs     *crud.MemoryRepo[*models.MaterialSpec]
	Reports   *crud.MemoryRepo[*models.ConstructionReport]
	Approvals approval.Repository
}

func (m *MemoryStore) openWorkflows(ctx context.Context, f approval.Filter) (int, error) {
	total := 0
	for _, st := range []approval.Status{approval.StatusPending, approval.StatusInReview} {
		f.Status = st
		_, n, err := m.Approvals.List(ctx, f, query.Page{Page: 1, PerPage: 1})
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (m *MemoryStore) Dashboard(ctx context.Context, since time.Time) (*Dashboard, error) {
	d := &Dashboard{ProjectsByStatus: map[string]int{}}
	for _, p := range m.Projects.All() {
		d.ProjectsByStatus[p.Status]++
		d.TotalProjects++
	}
	for _, s := range m.Suppliers.All() {
		if s.Status == models.SupplierApproved {
			d.ActiveSuppliers++
		}
	}
	for _, r := range m.Reports.All() {
		if !r.CreatedAt.Before(since) {
			d.RecentReports++
		}
	}
	n, err := m.openWorkflows(ctx, approval.Filter{})
	if err != nil {
		return nil, err
	}
	d.PendingApprovals = n
	return d, nil
}

func (m *MemoryStore) ProjectSummary(ctx context.Context, projectID string) (*ProjectSummary, error) {
	p, err := m.Projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	sum := &ProjectSummary{Project: p, MaterialsByStatus: map[string]int{}}
	var docs []string
	for _, s := range m.Specs.All() {
		if s.ProjectID != projectID {
			continue
		}
		sum.MaterialsByStatus[s.Status]++
		sum.MaterialCost += s.TotalCost()
		docs = append(docs, s.ID)
	}
	for _, r := range m.Reports.All() {
		if r.ProjectID == projectID {
			sum.ConstructionReports++
			docs = append(docs, r.ID)
		}
	}
	for _, id := range docs {
		n, err := m.openWorkflows(ctx, approval.Filter{DocumentID: id})
		if err != nil {
			return nil, err
		}
		sum.OpenWorkflows += n
	}
	return sum, nil
}
