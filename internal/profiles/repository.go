// Package profiles manages application users: credentials, roles and the
// password policy.
package profiles

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/models"
)

// Repository persists profiles. Email lookups are case-insensitive.
type Repository interface {
	Create(ctx context.Context, p *models.Profile) error
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	UpdatePassword(ctx context.Context, id, hash string, at time.Time) error
}

// MemoryRepo keeps profiles in process memory.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]*models.Profile
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[string]*models.Profile{}}
}

func (m *MemoryRepo) Create(_ context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.byID {
		if strings.EqualFold(other.Email, p.Email) {
			return apperr.Conflict("email already registered", nil)
		}
	}
	c := *p
	m.byID[p.ID] = &c
	return nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id string) (*models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, apperr.NotFound("profile")
	}
	c := *p
	return &c, nil
}

func (m *MemoryRepo) GetByEmail(_ context.Context, email string) (*models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.byID {
		if strings.EqualFold(p.Email, email) {
			c := *p
			return &c, nil
		}
	}
	return nil, apperr.NotFound("profile")
}

func (m *MemoryRepo) UpdatePassword(_ context.Context, id, hash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return apperr.NotFound("profile")
	}
	p.PasswordHash = hash
	p.UpdatedAt = at
	return nil
}
