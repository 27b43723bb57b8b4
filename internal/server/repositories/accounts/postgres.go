package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/coastwatch/hazardplatform/internal/common"
	"github.com/coastwatch/hazardplatform/internal/dbx"
	"github.com/coastwatch/hazardplatform/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const accountColumns = `id, name, email, password_hash, role, is_active, last_login, failed_logins, locked_until, profile_picture, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	acc := &models.Account{}
	var lastLogin, lockedUntil sql.NullTime
	var picture sql.NullString

	err := row.Scan(&acc.ID, &acc.Name, &acc.Email, &acc.PasswordHash, &acc.Role,
		&acc.IsActive, &lastLogin, &acc.FailedLogins, &lockedUntil, &picture,
		&acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lastLogin.Valid {
		acc.LastLogin = lastLogin.Time
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		acc.LockedUntil = &t
	}
	if picture.Valid {
		acc.ProfilePicture = picture.String
	}
	return acc, nil
}

func (r *PostgresRepository) Create(ctx context.Context, acc *models.Account) (*models.Account, error) {

	query :=
		`INSERT INTO accounts (name, email, password_hash, role, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		acc.Name, acc.Email, acc.PasswordHash, acc.Role, acc.IsActive).
		Scan(&acc.ID, &acc.CreatedAt, &acc.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return acc, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, models.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return acc, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return acc, nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id, name, profilePicture string) (*models.Account, error) {
	query :=
		`UPDATE accounts
		 SET name = $2, profile_picture = NULLIF($3, ''), updated_at = now()
		 WHERE id = $1
		 RETURNING ` + accountColumns

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, id, name, profilePicture))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return acc, nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE accounts SET password_hash = $2, updated_at = now() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// RecordLoginFailure runs the whole lockout transition in one UPDATE so two
// concurrent failures cannot lose an increment. An already-active lock is
// not re-extended; an expired one is cleared with the count restarting at 1,
// since the triggering failure itself counts.
func (r *PostgresRepository) RecordLoginFailure(ctx context.Context, id string, now time.Time, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	query :=
		`UPDATE accounts
		 SET failed_logins = CASE
		         WHEN locked_until IS NOT NULL AND locked_until <= $2 THEN 1
		         ELSE LEAST(failed_logins + 1, $3)
		     END,
		     locked_until = CASE
		         WHEN locked_until IS NOT NULL AND locked_until <= $2 THEN NULL
		         WHEN locked_until IS NULL AND failed_logins + 1 >= $3 THEN $4
		         ELSE locked_until
		     END,
		     updated_at = $2
		 WHERE id = $1
		 RETURNING failed_logins, locked_until
		 `

	var count int
	var locked sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id, now, threshold, lockUntil).Scan(&count, &locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, common.ErrNotFound
		}
		return 0, nil, fmt.Errorf("db error: %w", err)
	}

	if locked.Valid {
		t := locked.Time
		return count, &t, nil
	}
	return count, nil, nil
}

func (r *PostgresRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	query :=
		`UPDATE accounts
		 SET failed_logins = 0, locked_until = NULL, last_login = $2, updated_at = $2
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListActive(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE is_active ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		acc := &models.Account{}
		var lastLogin, lockedUntil sql.NullTime
		var picture sql.NullString

		err := rows.Scan(&acc.ID, &acc.Name, &acc.Email, &acc.PasswordHash, &acc.Role,
			&acc.IsActive, &lastLogin, &acc.FailedLogins, &lockedUntil, &picture,
			&acc.CreatedAt, &acc.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}

		if lastLogin.Valid {
			acc.LastLogin = lastLogin.Time
		}
		if lockedUntil.Valid {
			t := lockedUntil.Time
			acc.LockedUntil = &t
		}
		if picture.Valid {
			acc.ProfilePicture = picture.String
		}
		result = append(result, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
