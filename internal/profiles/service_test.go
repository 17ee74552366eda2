package profiles

import (
	"context"
	"testing"

	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/permissions"
	"github.com/sitework/sitework/internal/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService() *Service {
	s := NewService(NewMemoryRepo())
	s.cost = bcrypt.MinCost
	return s
}

func TestValidatePasswordChange(t *testing.T) {
	cases := []struct {
		current, next string
		ok            bool
	}{
		{"OldPass123", "OldPass123", false},
		{"OldPass123", "Sh0rt", false},
		{"OldPass123", "alllowercase1", false},
		{"OldPass123", "ALLUPPERCASE1", false},
		{"OldPass123", "NoDigitsHere", false},
		{"OldPass123", "NewPass456", true},
	}
	for _, tc := range cases {
		err := ValidatePasswordChange(tc.current, tc.next)
		if tc.ok {
			assert.NoError(t, err, tc.next)
		} else {
			assert.True(t, apperr.Is(err, apperr.KindValidation), tc.next)
		}
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	p, err := s.Register(ctx, RegisterInput{Email: "Ana@Example.com", Password: "Secret123", FullName: "Ana", Role: permissions.RoleProjectManager})
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", p.Email)
	require.NotEqual(t, "Secret123", p.PasswordHash)

	_, err = s.Register(ctx, RegisterInput{Email: "ana@example.com", Password: "Secret123", FullName: "Dup", Role: permissions.RoleClient})
	require.True(t, apperr.Is(err, apperr.KindConflict))
	_, err = s.Register(ctx, RegisterInput{Email: "b@example.com", Password: "Secret123", FullName: "B", Role: "overlord"})
	require.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = s.Register(ctx, RegisterInput{Email: "c@example.com", Password: "weak", FullName: "C", Role: permissions.RoleClient})
	require.True(t, apperr.Is(err, apperr.KindValidation))

	got, err := s.Authenticate(ctx, "ANA@example.com", "Secret123")
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)

	_, err = s.Authenticate(ctx, "ana@example.com", "wrong")
	require.True(t, apperr.Is(err, apperr.KindUnauthorized))
	_, err = s.Authenticate(ctx, "nobody@example.com", "Secret123")
	require.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestEnsureAdmin(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	_, _, err := s.EnsureAdmin(ctx, "root@example.com", "short", "")
	require.True(t, apperr.Is(err, apperr.KindValidation))

	p, created, err := s.EnsureAdmin(ctx, "root@example.com", "Bootstrap1", "")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, permissions.RoleAdmin, p.Role)
	require.Equal(t, "Administrator", p.FullName)

	again, created, err := s.EnsureAdmin(ctx, "ROOT@example.com", "Different2", "Other")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, p.ID, again.ID)

	// the first password still works
	_, err = s.Authenticate(ctx, "root@example.com", "Bootstrap1")
	require.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	p, err := s.Register(ctx, RegisterInput{Email: "x@example.com", Password: "Secret123", FullName: "X", Role: permissions.RoleFieldWorker})
	require.NoError(t, err)

	err = s.ChangePassword(ctx, p.ID, "bad-current", "Another456")
	require.True(t, apperr.Is(err, apperr.KindValidation))
	err = s.ChangePassword(ctx, p.ID, "Secret123", "Secret123")
	require.True(t, apperr.Is(err, apperr.KindValidation))
	err = s.ChangePassword(ctx, p.ID, "Secret123", "short")
	require.True(t, apperr.Is(err, apperr.KindValidation))

	require.NoError(t, s.ChangePassword(ctx, p.ID, "Secret123", "Another456"))
	_, err = s.Authenticate(ctx, "x@example.com", "Secret123")
	require.True(t, apperr.Is(err, apperr.KindUnauthorized))
	_, err = s.Authenticate(ctx, "x@example.com", "Another456")
	require.NoError(t, err)
}

func TestUpsertFromClaims(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	claims := map[string]interface{}{"sub": "kc-123", "email": "K@example.com", "name": "K User"}

	p, err := s.UpsertFromClaims(ctx, claims)
	require.NoError(t, err)
	require.Equal(t, "kc-123", p.ID)
	require.Equal(t, permissions.RoleClient, p.Role)

	again, err := s.UpsertFromClaims(ctx, claims)
	require.NoError(t, err)
	require.Equal(t, p.CreatedAt, again.CreatedAt)

	_, err = s.UpsertFromClaims(ctx, map[string]interface{}{"email": "x"})
	require.True(t, apperr.Is(err, apperr.KindUnauthorized))

	// password-less profiles cannot log in locally
	_, err = s.Authenticate(ctx, "k@example.com", "")
	require.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestResolveProfile(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	p, err := s.Register(ctx, RegisterInput{Email: "pm@example.com", Password: "longenough", FullName: "PM", Role: permissions.RoleProjectManager})
	require.NoError(t, err)

	got, err := s.ResolveProfile(ctx, map[string]interface{}{"iss": tokens.Issuer, "sub": p.ID})
	require.NoError(t, err)
	require.Equal(t, permissions.RoleProjectManager, got.Role)

	// local tokens never provision
	_, err = s.ResolveProfile(ctx, map[string]interface{}{"iss": tokens.Issuer, "sub": "ghost"})
	require.True(t, apperr.Is(err, apperr.KindUnauthorized))

	ext, err := s.ResolveProfile(ctx, map[string]interface{}{"iss": "https://idp.example.com/realms/x", "sub": "kc-9"})
	require.NoError(t, err)
	require.Equal(t, permissions.RoleClient, ext.Role)

	repo := s.repo.(*MemoryRepo)
	repo.mu.Lock()
	repo.byID[p.ID].IsActive = false
	repo.mu.Unlock()
	_, err = s.ResolveProfile(ctx, map[string]interface{}{"iss": tokens.Issuer, "sub": p.ID})
	require.True(t, apperr.Is(err, apperr.KindUnauthorized))
}
