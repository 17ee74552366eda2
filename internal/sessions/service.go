package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/sitework/sitework/internal/apperr"
)

// Service wraps repository operations with business logic
type Service struct {
	repo Repository
	ttl  time.Duration
}

func NewService(r Repository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{repo: r, ttl: ttl}
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CreateSession stores a new refresh session and returns it.
func (s *Service) CreateSession(ctx context.Context, userID string, c Client) (*Session, error) {
	tok, err := newToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &Session{
		RefreshToken: tok,
		UserID:       userID,
		UserAgent:    c.UserAgent,
		IP:           c.IP,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ValidateRefresh returns the live session for refresh.
func (s *Service) ValidateRefresh(ctx context.Context, refresh string) (*Session, error) {
	if refresh == "" {
		return nil, apperr.Unauthorized("invalid refresh token")
	}
	sess, err := s.repo.GetByRefresh(ctx, refresh)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperr.Unauthorized("invalid refresh token")
	}
	return sess, nil
}

// Rotate exchanges a valid refresh token for a new session. The old token
// stops working.
func (s *Service) Rotate(ctx context.Context, refresh string, c Client) (*Session, error) {
	old, err := s.ValidateRefresh(ctx, refresh)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteByRefresh(ctx, refresh); err != nil {
		return nil, err
	}
	return s.CreateSession(ctx, old.UserID, c)
}

func (s *Service) DeleteRefresh(ctx context.Context, refresh string) error {
	return s.repo.DeleteByRefresh(ctx, refresh)
}

// RevokeOthers ends every session of userID except keep.
func (s *Service) RevokeOthers(ctx context.Context, userID, keep string) (int, error) {
	return s.repo.DeleteForUser(ctx, userID, keep)
}
