package repository

import (
	"context"

	"github.com/geocontrol/parental-api/internal/domain/entity"
)

// UserRepository defines the persistence contract consumed by the lifecycle
// service. All operations are atomic at the single-record level.
//
// Implementations return domain.ErrUserNotFound for missing records and
// *domain.ConflictError when a unique constraint on email or username fires;
// the database constraint is the authoritative guard against duplicate-create
// races, the service only pre-checks for friendlier errors.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	// List returns users in insertion order. Callers clamp skip/limit before
	// calling; skip >= 0 and 1 <= limit <= 1000 are assumed.
	List(ctx context.Context, skip, limit int) ([]entity.User, error)
	Update(ctx context.Context, u *entity.User) error
	Delete(ctx context.Context, id string) error
}
