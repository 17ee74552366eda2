package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindStatusAndCode(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
		code   string
	}{
		{Validation("bad", nil), http.StatusBadRequest, "validation_error"},
		{Unauthorized("who"), http.StatusUnauthorized, "unauthorized"},
		{Forbidden("no"), http.StatusForbidden, "forbidden"},
		{NotFound("client"), http.StatusNotFound, "not_found"},
		{Conflict("dup", nil), http.StatusConflict, "conflict"},
		{Unavailable("db down", nil), http.StatusServiceUnavailable, "unavailable"},
		{Internal("boom", errors.New("x")), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.status, tc.err.Kind.Status())
		require.Equal(t, tc.code, tc.err.Kind.Code())
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("loading: %w", NotFound("project"))
	require.Equal(t, KindNotFound, KindOf(err))
	require.True(t, Is(err, KindNotFound))
	require.False(t, Is(nil, KindNotFound))
	require.Equal(t, KindInternal, KindOf(errors.New("plain")))
	require.Equal(t, "project not found", NotFound("project").Error())
}

func TestFieldError(t *testing.T) {
	err := Field("email", "is required")
	require.Equal(t, KindValidation, err.Kind)
	require.Equal(t, map[string]string{"email": "is required"}, err.Fields)
}

func TestUnwrap(t *testing.T) {
	base := errors.New("duplicate key")
	err := Conflict("client name already exists", base)
	require.ErrorIs(t, err, base)
	require.Contains(t, err.Error(), "duplicate key")
}
