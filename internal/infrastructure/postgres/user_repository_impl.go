package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geocontrol/parental-api/internal/domain"
	"github.com/geocontrol/parental-api/internal/domain/entity"
	"github.com/geocontrol/parental-api/internal/domain/repository"
)

// UserRepository is the pgx-backed store. The unique indexes on email and
// username are the authoritative guard against duplicate-create races; a
// 23505 from the database is surfaced as a domain.ConflictError.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, COALESCE(username, ''), email, COALESCE(full_name, ''), hashed_password, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Password,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// mapError converts driver errors into domain errors. Unknown failures are
// wrapped as transient StorageError so callers know a retry is safe.
func mapError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrUserNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		field := "email"
		if strings.Contains(pgErr.ConstraintName, "username") {
			field = "username"
		}
		return &domain.ConflictError{Field: field}
	}
	return &domain.StorageError{Op: op, Err: err}
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, full_name, hashed_password, is_active)
		VALUES (NULLIF($1, ''), $2, NULLIF($3, ''), $4, $5)
		RETURNING id, created_at, updated_at
	`, u.Username, u.Email, u.FullName, u.Password, u.IsActive)

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapError("create user", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, mapError("get user by id", err)
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email))
	if err != nil {
		return nil, mapError("get user by email", err)
	}
	return u, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1
	`, username))
	if err != nil {
		return nil, mapError("get user by username", err)
	}
	return u, nil
}

func (r *UserRepository) List(ctx context.Context, skip, limit int) ([]entity.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at, id
		OFFSET $1 LIMIT $2
	`, skip, limit)
	if err != nil {
		return nil, mapError("list users", err)
	}
	defer rows.Close()

	var users []entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapError("list users", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list users", err)
	}
	return users, nil
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	u.UpdatedAt = time.Now()

	// created_at is deliberately absent: it is immutable after creation.
	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET username = NULLIF($1, ''), email = $2, full_name = NULLIF($3, ''),
		    hashed_password = $4, is_active = $5, updated_at = $6
		WHERE id = $7
	`, u.Username, u.Email, u.FullName, u.Password, u.IsActive, u.UpdatedAt, u.ID)
	if err != nil {
		return mapError("update user", err)
	}
	if res.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapError("delete user", err)
	}
	if res.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
