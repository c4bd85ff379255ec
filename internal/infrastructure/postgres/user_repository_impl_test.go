package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geocontrol/parental-api/internal/domain"
)

func TestMapErrorNoRows(t *testing.T) {
	err := mapError("get user by id", pgx.ErrNoRows)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestMapErrorUniqueViolation(t *testing.T) {
	emailErr := mapError("create user", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	var ce *domain.ConflictError
	require.ErrorAs(t, emailErr, &ce)
	assert.Equal(t, "email", ce.Field)

	usernameErr := mapError("create user", &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})
	require.ErrorAs(t, usernameErr, &ce)
	assert.Equal(t, "username", ce.Field)
}

func TestMapErrorWrapsTransientFailures(t *testing.T) {
	cause := errors.New("connection refused")
	err := mapError("list users", cause)

	var se *domain.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "list users", se.Op)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, fmt.Sprint(err), "list users")
}
