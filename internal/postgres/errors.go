// Package postgres implements the repositories on PostgreSQL through pgx.
package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sitework/sitework/internal/apperr"
)

// SQLSTATE codes mapped to client errors.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
)

// mapError converts driver errors for the named resource into apperr kinds.
func mapError(what string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return apperr.Conflict(what+" already exists", err)
		case foreignKeyViolation:
			return &apperr.Error{Kind: apperr.KindValidation, Message: "referenced record does not exist", Err: err}
		case checkViolation:
			return &apperr.Error{Kind: apperr.KindValidation, Message: "value violates constraint " + pgErr.ConstraintName, Err: err}
		}
	}
	return apperr.Internal(what+" query failed", err)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
