package repository

import (
	"context"
	"errors"
	"time"

	"identity-service/internal/models"
)

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrDuplicateEmail   = errors.New("account with this email already exists")
	ErrStoreUnavailable = errors.New("account store unavailable")
)

// AccountRepository is the persistence contract for accounts. Lookups return
// ErrAccountNotFound rather than a nil account; driver failures are wrapped
// with ErrStoreUnavailable.
type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)

	// Create assigns an id when the account has none.
	Create(ctx context.Context, account *models.Account) error
	Save(ctx context.Context, account *models.Account) error

	// ConsumeOTP clears the code and sets both verification flags, but only
	// while the stored code equals code and has not expired at now. It
	// reports whether this call performed the update.
	ConsumeOTP(ctx context.Context, id string, code int, now time.Time) (bool, error)

	List(ctx context.Context, skip, limit int64) ([]*models.Account, error)
	Count(ctx context.Context) (int64, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
