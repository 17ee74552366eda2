package notifications

import (
	"context"
	"sort"
	"sync"

	"github.com/sitework/sitework/internal/apperr"
)

// MemoryRepo is used in tests and when MongoDB is not configured.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*Notification
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*Notification)}
}

func (m *MemoryRepo) Insert(_ context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *n
	m.store[n.ID] = &c
	return nil
}

func (m *MemoryRepo) ListFor(_ context.Context, recipient string, unreadOnly bool, offset, limit int) ([]*Notification, int, error) {
	m.mu.RLock()
	out := []*Notification{}
	for _, n := range m.store {
		if n.RecipientID != recipient || (unreadOnly && n.Read) {
			continue
		}
		c := *n
		out = append(out, &c)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (m *MemoryRepo) MarkRead(_ context.Context, recipient, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.store[id]
	if !ok || n.RecipientID != recipient {
		return apperr.NotFound("notification")
	}
	n.Read = true
	return nil
}
