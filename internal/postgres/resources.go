package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/crud"
	"github.com/sitework/sitework/internal/models"
	"github.com/sitework/sitework/internal/query"
)

// Repo is a crud.Repository over one table. Columns must list every db tag of
// E, and values must return them in the same order.
type Repo[E any, T interface {
	*E
	crud.Entity
}] struct {
	pool    *pgxpool.Pool
	name    string
	table   string
	columns []string
	values  func(T) []any
	search  []string
	filters map[string]bool
	sorts   map[string]bool
}

var _ crud.Repository[*models.Client] = (*Repo[models.Client, *models.Client])(nil)

func newRepo[E any, T interface {
	*E
	crud.Entity
}](pool *pgxpool.Pool, name, table string, columns []string, values func(T) []any, search, filters, sorts []string) *Repo[E, T] {
	r := &Repo[E, T]{pool: pool, name: name, table: table, columns: columns, values: values, search: search,
		filters: map[string]bool{}, sorts: map[string]bool{"created_at": true, "updated_at": true}}
	for _, f := range filters {
		r.filters[f] = true
	}
	for _, s := range sorts {
		r.sorts[s] = true
	}
	return r
}

func placeholders(from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ps, ", ")
}

func (r *Repo[E, T]) selectList() string { return strings.Join(r.columns, ", ") }

func (r *Repo[E, T]) Create(ctx context.Context, e T) error {
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", r.table, r.selectList(), placeholders(1, len(r.columns)))
	_, err := r.pool.Exec(ctx, sql, r.values(e)...)
	return mapError(r.name, err)
}

func (r *Repo[E, T]) Get(ctx context.Context, id string) (T, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", r.selectList(), r.table), id)
	if err != nil {
		return nil, mapError(r.name, err)
	}
	e, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[E])
	if err != nil {
		return nil, mapError(r.name, err)
	}
	return e, nil
}

// where builds the search and filter clause. Filter keys outside the
// whitelist are ignored.
func (r *Repo[E, T]) where(p query.Page) (string, []any) {
	var conds []string
	var args []any
	if p.Search != "" && len(r.search) > 0 {
		args = append(args, "%"+escapeLike(p.Search)+"%")
		ors := make([]string, len(r.search))
		for i, col := range r.search {
			ors[i] = fmt.Sprintf("%s ILIKE $%d", col, len(args))
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	keys := make([]string, 0, len(p.Filters))
	for k := range p.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !r.filters[k] {
			continue
		}
		args = append(args, p.Filters[k])
		conds = append(conds, fmt.Sprintf("%s = $%d", k, len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

func (r *Repo[E, T]) List(ctx context.Context, p query.Page) ([]T, int, error) {
	where, args := r.where(p)
	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+r.table+where, args...).Scan(&total); err != nil {
		return nil, 0, mapError(r.name, err)
	}
	order := "created_at"
	if r.sorts[p.Sort] {
		order = p.Sort
	}
	dir := "ASC"
	if p.Desc {
		dir = "DESC"
	}
	args = append(args, p.PerPage, p.Offset())
	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s %s, id LIMIT $%d OFFSET $%d",
		r.selectList(), r.table, where, order, dir, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, mapError(r.name, err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[E])
	if err != nil {
		return nil, 0, mapError(r.name, err)
	}
	out := make([]T, len(items))
	for i, e := range items {
		out[i] = e
	}
	return out, total, nil
}

func (r *Repo[E, T]) Update(ctx context.Context, e T) error {
	vals := r.values(e)
	var (
		sets []string
		args []any
		id   any
	)
	for i, col := range r.columns {
		switch col {
		case "id":
			id = vals[i]
		case "created_at":
		default:
			args = append(args, vals[i])
			sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
		}
	}
	args = append(args, id)
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", r.table, strings.Join(sets, ", "), len(args))
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return mapError(r.name, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(r.name)
	}
	return nil
}

func (r *Repo[E, T]) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM "+r.table+" WHERE id = $1", id)
	if err != nil {
		return mapError(r.name, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(r.name)
	}
	return nil
}

func NewClientRepo(pool *pgxpool.Pool) *Repo[models.Client, *models.Client] {
	return newRepo[models.Client](pool, "client", "clients",
		[]string{"id", "name", "company_type", "contact_person", "email", "phone", "address", "notes", "created_by", "created_at", "updated_at"},
		func(c *models.Client) []any {
			return []any{c.ID, c.Name, c.CompanyType, c.ContactPerson, c.Email, c.Phone, c.Address, c.Notes, c.CreatedBy, c.CreatedAt, c.UpdatedAt}
		},
		[]string{"name", "contact_person", "email"},
		[]string{"company_type", "created_by"},
		[]string{"name"},
	)
}

func NewSupplierRepo(pool *pgxpool.Pool) *Repo[models.Supplier, *models.Supplier] {
	return newRepo[models.Supplier](pool, "supplier", "suppliers",
		[]string{"id", "name", "specialties", "contact_person", "email", "phone", "status", "rating", "created_at", "updated_at"},
		func(s *models.Supplier) []any {
			return []any{s.ID, s.Name, nonNil(s.Specialties), s.ContactPerson, s.Email, s.Phone, s.Status, s.Rating, s.CreatedAt, s.UpdatedAt}
		},
		[]string{"name", "contact_person", "array_to_string(specialties, ' ')"},
		[]string{"status"},
		[]string{"name", "rating"},
	)
}

func NewProjectRepo(pool *pgxpool.Pool) *Repo[models.Project, *models.Project] {
	return newRepo[models.Project](pool, "project", "projects",
		[]string{"id", "code", "name", "client_id", "status", "budget", "start_date", "end_date", "project_manager_id", "location", "created_at", "updated_at"},
		func(p *models.Project) []any {
			return []any{p.ID, p.Code, p.Name, p.ClientID, p.Status, p.Budget, p.StartDate, p.EndDate, p.ProjectManagerID, p.Location, p.CreatedAt, p.UpdatedAt}
		},
		[]string{"code", "name", "location"},
		[]string{"status", "client_id", "project_manager_id"},
		[]string{"code", "name", "budget", "start_date", "end_date"},
	)
}

func NewMaterialSpecRepo(pool *pgxpool.Pool) *Repo[models.MaterialSpec, *models.MaterialSpec] {
	return newRepo[models.MaterialSpec](pool, "material spec", "material_specs",
		[]string{"id", "project_id", "supplier_id", "name", "category", "quantity", "unit", "unit_price", "status", "attachment_key", "created_by", "created_at", "updated_at"},
		func(m *models.MaterialSpec) []any {
			return []any{m.ID, m.ProjectID, m.SupplierID, m.Name, m.Category, m.Quantity, m.Unit, m.UnitPrice, m.Status, m.AttachmentKey, m.CreatedBy, m.CreatedAt, m.UpdatedAt}
		},
		[]string{"name", "category"},
		[]string{"status", "project_id", "supplier_id", "category"},
		[]string{"name", "category", "quantity", "unit_price", "status"},
	)
}

func NewConstructionReportRepo(pool *pgxpool.Pool) *Repo[models.ConstructionReport, *models.ConstructionReport] {
	return newRepo[models.ConstructionReport](pool, "construction report", "construction_reports",
		[]string{"id", "project_id", "report_date", "weather", "work_summary", "issues", "photo_keys", "status", "created_by", "created_at", "updated_at"},
		func(r *models.ConstructionReport) []any {
			return []any{r.ID, r.ProjectID, r.ReportDate, r.Weather, r.WorkSummary, r.Issues, nonNil(r.PhotoKeys), r.Status, r.CreatedBy, r.CreatedAt, r.UpdatedAt}
		},
		[]string{"work_summary", "issues"},
		[]string{"status", "project_id", "created_by"},
		[]string{"report_date", "status"},
	)
}
