// Package crud provides the generic repository/service pair behind the plain
// resource endpoints (clients, suppliers, projects, material specs and
// construction reports).
package crud

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/query"
)

// Entity is implemented by pointer model types embedding models.Base.
type Entity interface {
	GetID() string
	SetID(id string)
	Stamp(now time.Time)
	Created() time.Time
	SetCreated(t time.Time)
	SearchText() string
	FilterValue(key string) string
}

// Repository defines persistence operations for one resource.
type Repository[T Entity] interface {
	Create(ctx context.Context, e T) error
	Get(ctx context.Context, id string) (T, error)
	List(ctx context.Context, p query.Page) ([]T, int, error)
	Update(ctx context.Context, e T) error
	Delete(ctx context.Context, id string) error
}

// MemoryRepo is an in-memory repository used when no database is configured
// and in unit tests. Lists are ordered by creation time only.
type MemoryRepo[T Entity] struct {
	mu     sync.RWMutex
	name   string
	store  map[string]T
	unique func(T) string
}

// NewMemoryRepo creates a repository for the named resource. unique, when not
// nil, returns the value that must be unique across rows (409 on duplicates).
func NewMemoryRepo[T Entity](name string, unique func(T) string) *MemoryRepo[T] {
	return &MemoryRepo[T]{name: name, store: make(map[string]T), unique: unique}
}

func (m *MemoryRepo[T]) conflict(e T) error {
	if m.unique == nil {
		return nil
	}
	key := strings.ToLower(m.unique(e))
	for id, other := range m.store {
		if id != e.GetID() && strings.ToLower(m.unique(other)) == key {
			return apperr.Conflict(m.name+" already exists", nil)
		}
	}
	return nil
}

func (m *MemoryRepo[T]) Create(_ context.Context, e T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[e.GetID()]; ok {
		return apperr.Conflict(m.name+" already exists", nil)
	}
	if err := m.conflict(e); err != nil {
		return err
	}
	m.store[e.GetID()] = e
	return nil
}

func (m *MemoryRepo[T]) Get(_ context.Context, id string) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.store[id]
	if !ok {
		var zero T
		return zero, apperr.NotFound(m.name)
	}
	return e, nil
}

func (m *MemoryRepo[T]) List(_ context.Context, p query.Page) ([]T, int, error) {
	m.mu.RLock()
	matched := make([]T, 0, len(m.store))
	for _, e := range m.store {
		if matches(e, p) {
			matched = append(matched, e)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if p.Desc {
			return matched[i].Created().After(matched[j].Created())
		}
		return matched[i].Created().Before(matched[j].Created())
	})
	total := len(matched)
	start := p.Offset()
	if start > total {
		start = total
	}
	end := start + p.PerPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func matches[T Entity](e T, p query.Page) bool {
	if p.Search != "" && !strings.Contains(e.SearchText(), p.Search) {
		return false
	}
	for k, v := range p.Filters {
		if e.FilterValue(k) != v {
			return false
		}
	}
	return true
}

func (m *MemoryRepo[T]) Update(_ context.Context, e T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[e.GetID()]; !ok {
		return apperr.NotFound(m.name)
	}
	if err := m.conflict(e); err != nil {
		return err
	}
	m.store[e.GetID()] = e
	return nil
}

func (m *MemoryRepo[T]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return apperr.NotFound(m.name)
	}
	delete(m.store, id)
	return nil
}

// All returns every stored row, unordered. Used by in-memory reporting.
func (m *MemoryRepo[T]) All() []T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]T, 0, len(m.store))
	for _, e := range m.store {
		out = append(out, e)
	}
	return out
}
