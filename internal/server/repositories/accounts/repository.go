// Package accounts implements the credential store: durable account records
// with email uniqueness enforced by the database and race-safe lockout
// bookkeeping done in single SQL statements.
package accounts

import (
	"context"
	"time"

	"github.com/coastwatch/hazardplatform/internal/server/models"
)

type Repository interface {
	// Create inserts a new account. A concurrent insert with the same
	// normalized email fails with common.ErrDuplicateEmail via the store's
	// uniqueness constraint, never a check-then-insert race.
	Create(ctx context.Context, acc *models.Account) (*models.Account, error)

	// GetByEmail looks an account up by normalized email.
	GetByEmail(ctx context.Context, email string) (*models.Account, error)

	GetByID(ctx context.Context, id string) (*models.Account, error)

	// UpdateProfile persists mutable profile fields and returns the updated
	// account.
	UpdateProfile(ctx context.Context, id, name, profilePicture string) (*models.Account, error)

	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// RecordLoginFailure applies one failed-attempt transition of the
	// lockout state machine atomically: an expired lock is cleared and the
	// count restarts at 1; otherwise the count increments, and reaching
	// threshold while unlocked sets locked_until to the given instant.
	// Returns the resulting count and lock expiry.
	RecordLoginFailure(ctx context.Context, id string, now time.Time, threshold int, lockUntil time.Time) (int, *time.Time, error)

	// RecordLoginSuccess resets the failure count, clears any lock, and
	// stamps last_login.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error

	// ListActive returns all active accounts, newest first.
	ListActive(ctx context.Context) ([]*models.Account, error)

	// CountAll reports the total number of accounts (health check).
	CountAll(ctx context.Context) (int64, error)
}
