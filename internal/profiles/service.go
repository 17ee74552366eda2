package profiles

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/models"
	"github.com/sitework/sitework/internal/permissions"
	"github.com/sitework/sitework/internal/tokens"
	"golang.org/x/crypto/bcrypt"
)

// Service encapsulates profile business logic.
type Service struct {
	repo Repository
	cost int
	now  func() time.Time
}

func NewService(r Repository) *Service {
	return &Service{repo: r, cost: bcrypt.DefaultCost, now: func() time.Time { return time.Now().UTC() }}
}

type RegisterInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"fullName" binding:"required,max=200"`
	Role     string `json:"role" binding:"required"`
}

// Register creates an active profile with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Profile, error) {
	if !permissions.ValidRole(in.Role) {
		return nil, apperr.Field("role", "unknown role")
	}
	if err := checkPassword("password", in.Password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}
	now := s.now()
	p := &models.Profile{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		FullName:     in.FullName,
		Role:         in.Role,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// EnsureAdmin registers an admin profile for email unless one with that email
// already exists, in which case the stored profile is returned untouched.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, name string) (*models.Profile, bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, false, apperr.Field("email", "is required")
	}
	if p, err := s.repo.GetByEmail(ctx, email); err == nil {
		return p, false, nil
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return nil, false, err
	}
	if name == "" {
		name = "Administrator"
	}
	p, err := s.Register(ctx, RegisterInput{Email: email, Password: password, FullName: name, Role: permissions.RoleAdmin})
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// Authenticate checks email and password. Unknown users, inactive users and
// wrong passwords all yield the same Unauthorized error.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.Profile, error) {
	p, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("invalid credentials")
		}
		return nil, err
	}
	if !p.IsActive || p.PasswordHash == "" {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	return p, nil
}

// ChangePassword verifies current, applies the password policy and stores the
// new hash.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(current)); err != nil {
		return apperr.Field("currentPassword", "is incorrect")
	}
	if err := ValidatePasswordChange(current, next); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return apperr.Internal("hash password", err)
	}
	return s.repo.UpdatePassword(ctx, id, string(hash), s.now())
}

func (s *Service) Get(ctx context.Context, id string) (*models.Profile, error) {
	return s.repo.GetByID(ctx, id)
}

// UpsertFromClaims returns the profile matching an OIDC identity, creating a
// password-less client profile on first sight.
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*models.Profile, error) {
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	if sub == "" {
		return nil, apperr.Unauthorized("token has no subject")
	}
	if p, err := s.repo.GetByID(ctx, sub); err == nil {
		return p, nil
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}
	now := s.now()
	p := &models.Profile{
		ID:        sub,
		Email:     strings.ToLower(email),
		FullName:  name,
		Role:      permissions.RoleClient,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ResolveProfile maps verified token claims to an active profile. Locally
// issued tokens must name an existing profile; identities from the external
// provider are provisioned on first use.
func (s *Service) ResolveProfile(ctx context.Context, claims map[string]interface{}) (*models.Profile, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, apperr.Unauthorized("token has no subject")
	}
	var (
		p   *models.Profile
		err error
	)
	if iss, _ := claims["iss"].(string); iss == tokens.Issuer {
		p, err = s.repo.GetByID(ctx, sub)
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("unknown user")
		}
	} else {
		p, err = s.UpsertFromClaims(ctx, claims)
	}
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, apperr.Unauthorized("user is inactive")
	}
	return p, nil
}
