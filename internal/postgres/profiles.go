package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/models"
)

const profileColumns = "id, email, full_name, role, password_hash, is_active, created_at, updated_at"

// ProfileRepo implements profiles.Repository. Emails are stored lower-case.
type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo { return &ProfileRepo{pool: pool} }

func (r *ProfileRepo) Create(ctx context.Context, p *models.Profile) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO profiles (`+profileColumns+`) VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Email, p.FullName, p.Role, p.PasswordHash, p.IsActive, p.CreatedAt, p.UpdatedAt)
	err = mapError("profile", err)
	if apperr.Is(err, apperr.KindConflict) {
		return apperr.Conflict("email already registered", err)
	}
	return err
}

func (r *ProfileRepo) one(ctx context.Context, where string, arg any) (*models.Profile, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE `+where, arg)
	if err != nil {
		return nil, mapError("profile", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[models.Profile])
	if err != nil {
		return nil, mapError("profile", err)
	}
	return p, nil
}

func (r *ProfileRepo) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	return r.one(ctx, "id = $1", id)
}

func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return r.one(ctx, "email = lower($1)", email)
}

func (r *ProfileRepo) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE profiles SET password_hash = $1, updated_at = $2 WHERE id = $3`, hash, at, id)
	if err != nil {
		return mapError("profile", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("profile")
	}
	return nil
}
