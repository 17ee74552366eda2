package approval

import (
	"context"
	"sort"
	"sync"

	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/query"
)

// Filter narrows workflow listings.
type Filter struct {
	Status       Status
	DocumentID   string
	DocumentType string
	Approver     string
}

// RecordFunc receives the locked current workflow and returns the new state
// plus the action to insert.
type RecordFunc func(current *Workflow) (*Workflow, *Action, error)

// Repository persists workflows and their actions.
type Repository interface {
	// Create fails with a conflict when the document already has an open workflow.
	Create(ctx context.Context, w *Workflow) error
	Get(ctx context.Context, id string) (*Workflow, error)
	List(ctx context.Context, f Filter, p query.Page) ([]*Workflow, int, error)
	// Open returns non-terminal workflows that list approver as required.
	Open(ctx context.Context, approver string) ([]*Workflow, error)
	Actions(ctx context.Context, workflowID string) ([]*Action, error)
	// Record runs fn with exclusive access to the workflow row and stores the
	// returned workflow and action atomically.
	Record(ctx context.Context, workflowID string, fn RecordFunc) (*Workflow, error)
}

// MemoryRepo keeps workflows in process memory.
type MemoryRepo struct {
	mu        sync.Mutex
	workflows map[string]*Workflow
	actions   map[string][]*Action
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{workflows: map[string]*Workflow{}, actions: map[string][]*Action{}}
}

func (m *MemoryRepo) Create(_ context.Context, w *Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workflows[w.ID]; ok {
		return apperr.Conflict("workflow already exists", nil)
	}
	for _, cur := range m.workflows {
		if !cur.Terminal() && cur.DocumentType == w.DocumentType && cur.DocumentID == w.DocumentID {
			return apperr.Conflict("document already has an open approval workflow", ErrOpenWorkflow)
		}
	}
	m.workflows[w.ID] = w.Clone()
	return nil
}

func (m *MemoryRepo) Get(_ context.Context, id string) (*Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[id]
	if !ok {
		return nil, apperr.NotFound("workflow")
	}
	return w.Clone(), nil
}

func (m *MemoryRepo) List(_ context.Context, f Filter, p query.Page) ([]*Workflow, int, error) {
	m.mu.Lock()
	var out []*Workflow
	for _, w := range m.workflows {
		if f.Status != "" && w.Status != f.Status {
			continue
		}
		if f.DocumentID != "" && w.DocumentID != f.DocumentID {
			continue
		}
		if f.DocumentType != "" && w.DocumentType != f.DocumentType {
			continue
		}
		if f.Approver != "" && !w.isRequired(f.Approver) {
			continue
		}
		out = append(out, w.Clone())
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].PriorityLevel != out[j].PriorityLevel {
			return out[i].PriorityLevel > out[j].PriorityLevel
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	total := len(out)
	start := p.Offset()
	if start > total {
		start = total
	}
	end := start + p.PerPage
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (m *MemoryRepo) Open(_ context.Context, approver string) ([]*Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Workflow
	for _, w := range m.workflows {
		if !w.Terminal() && w.isRequired(approver) {
			out = append(out, w.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepo) Actions(_ context.Context, workflowID string) ([]*Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workflows[workflowID]; !ok {
		return nil, apperr.NotFound("workflow")
	}
	out := make([]*Action, 0, len(m.actions[workflowID]))
	for _, a := range m.actions[workflowID] {
		c := *a
		out = append(out, &c)
	}
	return out, nil
}

func (m *MemoryRepo) Record(_ context.Context, workflowID string, fn RecordFunc) (*Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.workflows[workflowID]
	if !ok {
		return nil, apperr.NotFound("workflow")
	}
	next, action, err := fn(cur.Clone())
	if err != nil {
		return nil, err
	}
	m.workflows[workflowID] = next.Clone()
	stored := *action
	m.actions[workflowID] = append(m.actions[workflowID], &stored)
	return next.Clone(), nil
}
