// Package sessions stores refresh sessions and the access-token blacklist.
package sessions

import (
	"context"
	"time"
)

// Session is a refresh session. The refresh token is its key.
type Session struct {
	RefreshToken string    `json:"refreshToken"`
	UserID       string    `json:"userId"`
	UserAgent    string    `json:"userAgent,omitempty"`
	IP           string    `json:"ip,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Client describes where a session was opened from.
type Client struct {
	UserAgent string
	IP        string
}

// Repository provides session persistence. GetByRefresh returns (nil, nil)
// for unknown or expired tokens.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByRefresh(ctx context.Context, refresh string) (*Session, error)
	DeleteByRefresh(ctx context.Context, refresh string) error
	// DeleteForUser removes every session of userID except the one keyed by
	// keep (which may be empty) and returns how many were removed.
	DeleteForUser(ctx context.Context, userID, keep string) (int, error)
}
