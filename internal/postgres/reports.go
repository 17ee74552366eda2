package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sitework/sitework/internal/models"
	"github.com/sitework/sitework/internal/reports"
)

// ReportStore implements reports.Store with aggregate queries.
type ReportStore struct {
	pool     *pgxpool.Pool
	projects *Repo[models.Project, *models.Project]
}

func NewReportStore(pool *pgxpool.Pool) *ReportStore {
	return &ReportStore{pool: pool, projects: NewProjectRepo(pool)}
}

func (s *ReportStore) Dashboard(ctx context.Context, since time.Time) (*reports.Dashboard, error) {
	d := &reports.Dashboard{ProjectsByStatus: map[string]int{}}
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM projects GROUP BY status`)
	if err != nil {
		return nil, mapError("project", err)
	}
	var (
		status string
		n      int
	)
	_, err = pgx.ForEachRow(rows, []any{&status, &n}, func() error {
		d.ProjectsByStatus[status] = n
		d.TotalProjects += n
		return nil
	})
	if err != nil {
		return nil, mapError("project", err)
	}
	err = s.pool.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM approval_workflows WHERE current_status IN ('pending', 'in_review')),
		(SELECT COUNT(*) FROM suppliers WHERE status = 'approved'),
		(SELECT COUNT(*) FROM construction_reports WHERE created_at >= $1)`, since).
		Scan(&d.PendingApprovals, &d.ActiveSuppliers, &d.RecentReports)
	if err != nil {
		return nil, mapError("dashboard", err)
	}
	return d, nil
}

func (s *ReportStore) ProjectSummary(ctx context.Context, projectID string) (*reports.ProjectSummary, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	sum := &reports.ProjectSummary{Project: p, MaterialsByStatus: map[string]int{}}
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*), COALESCE(SUM(quantity * unit_price), 0)
		FROM material_specs WHERE project_id = $1 GROUP BY status`, projectID)
	if err != nil {
		return nil, mapError("material spec", err)
	}
	var (
		status string
		n      int
		cost   float64
	)
	_, err = pgx.ForEachRow(rows, []any{&status, &n, &cost}, func() error {
		sum.MaterialsByStatus[status] = n
		sum.MaterialCost += cost
		return nil
	})
	if err != nil {
		return nil, mapError("material spec", err)
	}
	err = s.pool.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM construction_reports WHERE project_id = $1),
		(SELECT COUNT(*) FROM approval_workflows w
			WHERE w.current_status IN ('pending', 'in_review')
			AND (w.document_id IN (SELECT id FROM material_specs WHERE project_id = $1)
				OR w.document_id IN (SELECT id FROM construction_reports WHERE project_id = $1)))`, projectID).
		Scan(&sum.ConstructionReports, &sum.OpenWorkflows)
	if err != nil {
		return nil, mapError("project summary", err)
	}
	return sum, nil
}
