package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/approval"
	"github.com/sitework/sitework/internal/query"
)

const workflowColumns = `id, document_id, document_type, title, current_status, workflow_type, required_approvers,
	completed_approvers, approval_sequence, priority_level, created_by, due_date, created_at, updated_at, completed_at`

// openWorkflowIndex allows one pending or in_review workflow per document.
const openWorkflowIndex = "idx_approval_workflows_open_document"

// ApprovalRepo implements approval.Repository. Record holds a row lock for the
// duration of the transition so concurrent approvals serialise per workflow.
type ApprovalRepo struct {
	pool *pgxpool.Pool
}

var _ approval.Repository = (*ApprovalRepo)(nil)

func NewApprovalRepo(pool *pgxpool.Pool) *ApprovalRepo { return &ApprovalRepo{pool: pool} }

func scanWorkflow(row pgx.CollectableRow) (*approval.Workflow, error) {
	var (
		w        approval.Workflow
		status   string
		typ      string
		sequence []int32
	)
	err := row.Scan(&w.ID, &w.DocumentID, &w.DocumentType, &w.Title, &status, &typ, &w.RequiredApprovers,
		&w.CompletedApprovers, &sequence, &w.PriorityLevel, &w.CreatedBy, &w.DueDate, &w.CreatedAt, &w.UpdatedAt, &w.CompletedAt)
	if err != nil {
		return nil, err
	}
	w.Status = approval.Status(status)
	w.Type = approval.Type(typ)
	w.ApprovalSequence = make([]int, len(sequence))
	for i, v := range sequence {
		w.ApprovalSequence[i] = int(v)
	}
	if w.CompletedApprovers == nil {
		w.CompletedApprovers = []string{}
	}
	return &w, nil
}

func int32s(in []int) []int32 {
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = int32(v)
	}
	return out
}

func (r *ApprovalRepo) Create(ctx context.Context, w *approval.Workflow) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO approval_workflows (`+workflowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		w.ID, w.DocumentID, w.DocumentType, w.Title, string(w.Status), string(w.Type), w.RequiredApprovers,
		nonNil(w.CompletedApprovers), int32s(w.ApprovalSequence), w.PriorityLevel, w.CreatedBy, w.DueDate,
		w.CreatedAt, w.UpdatedAt, w.CompletedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName == openWorkflowIndex {
		return apperr.Conflict("document already has an open approval workflow", approval.ErrOpenWorkflow)
	}
	return mapError("workflow", err)
}

func (r *ApprovalRepo) Get(ctx context.Context, id string) (*approval.Workflow, error) {
	return getWorkflow(ctx, r.pool, id, false)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getWorkflow(ctx context.Context, q querier, id string, lock bool) (*approval.Workflow, error) {
	sql := `SELECT ` + workflowColumns + ` FROM approval_workflows WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return nil, mapError("workflow", err)
	}
	w, err := pgx.CollectExactlyOneRow(rows, scanWorkflow)
	if err != nil {
		return nil, mapError("workflow", err)
	}
	return w, nil
}

func (r *ApprovalRepo) List(ctx context.Context, f approval.Filter, p query.Page) ([]*approval.Workflow, int, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("current_status = $%d", string(f.Status))
	}
	if f.DocumentID != "" {
		add("document_id = $%d", f.DocumentID)
	}
	if f.DocumentType != "" {
		add("document_type = $%d", f.DocumentType)
	}
	if f.Approver != "" {
		add("$%d = ANY(required_approvers)", f.Approver)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM approval_workflows`+where, args...).Scan(&total); err != nil {
		return nil, 0, mapError("workflow", err)
	}
	args = append(args, p.PerPage, p.Offset())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM approval_workflows%s
		ORDER BY priority_level DESC, created_at DESC LIMIT $%d OFFSET $%d`, workflowColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, mapError("workflow", err)
	}
	items, err := pgx.CollectRows(rows, scanWorkflow)
	if err != nil {
		return nil, 0, mapError("workflow", err)
	}
	return items, total, nil
}

func (r *ApprovalRepo) Open(ctx context.Context, approver string) ([]*approval.Workflow, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+workflowColumns+` FROM approval_workflows
		WHERE current_status IN ('pending', 'in_review') AND $1 = ANY(required_approvers)
		ORDER BY created_at`, approver)
	if err != nil {
		return nil, mapError("workflow", err)
	}
	items, err := pgx.CollectRows(rows, scanWorkflow)
	return items, mapError("workflow", err)
}

type actionRow struct {
	ID         string    `db:"id"`
	WorkflowID string    `db:"workflow_id"`
	ActorID    string    `db:"actor_id"`
	Type       string    `db:"action_type"`
	Comments   string    `db:"comments"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r *ApprovalRepo) Actions(ctx context.Context, workflowID string) ([]*approval.Action, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM approval_workflows WHERE id = $1)`, workflowID).Scan(&exists); err != nil {
		return nil, mapError("workflow", err)
	}
	if !exists {
		return nil, apperr.NotFound("workflow")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, workflow_id, actor_id, action_type, comments, created_at
		FROM approval_actions WHERE workflow_id = $1 ORDER BY created_at, id`, workflowID)
	if err != nil {
		return nil, mapError("approval action", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowToStructByName[actionRow])
	if err != nil {
		return nil, mapError("approval action", err)
	}
	out := make([]*approval.Action, len(found))
	for i, a := range found {
		out[i] = &approval.Action{ID: a.ID, WorkflowID: a.WorkflowID, ActorID: a.ActorID,
			Type: approval.ActionType(a.Type), Comments: a.Comments, CreatedAt: a.CreatedAt}
	}
	return out, nil
}

// Record locks the workflow row, applies fn, and writes the action and the new
// workflow state in one transaction.
func (r *ApprovalRepo) Record(ctx context.Context, workflowID string, fn approval.RecordFunc) (*approval.Workflow, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, mapError("workflow", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cur, err := getWorkflow(ctx, tx, workflowID, true)
	if err != nil {
		return nil, err
	}
	next, action, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO approval_actions (id, workflow_id, actor_id, action_type, comments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		action.ID, action.WorkflowID, action.ActorID, string(action.Type), action.Comments, action.CreatedAt); err != nil {
		return nil, mapError("approval action", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE approval_workflows
		SET current_status = $1, completed_approvers = $2, updated_at = $3, completed_at = $4 WHERE id = $5`,
		string(next.Status), nonNil(next.CompletedApprovers), next.UpdatedAt, next.CompletedAt, workflowID); err != nil {
		return nil, mapError("workflow", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, mapError("workflow", err)
	}
	return next, nil
}
