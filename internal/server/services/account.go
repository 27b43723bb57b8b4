// Package services contains server-side business logic. This file implements
// AccountService, which owns every identity-security decision: registration,
// login with failed-attempt lockout, token issuance and verification,
// password changes, and role checks. No other component compares secrets or
// mints tokens.
package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/coastwatch/hazardplatform/internal/common"
	"github.com/coastwatch/hazardplatform/internal/dbx"
	"github.com/coastwatch/hazardplatform/internal/server/auth"
	"github.com/coastwatch/hazardplatform/internal/server/config"
	"github.com/coastwatch/hazardplatform/internal/server/models"
	"github.com/coastwatch/hazardplatform/internal/server/repositories/repomanager"
	"github.com/coastwatch/hazardplatform/internal/shared"
)

// timeNow is a seam for tests exercising lockout expiry.
var timeNow = time.Now

// AccountService provides authentication-related operations backed by the
// credential store.
type AccountService struct {
	db               *sql.DB
	repomanager      repomanager.RepositoryManager
	jwtSecret        []byte
	tokenValidity    time.Duration
	bcryptCost       int
	maxLoginAttempts int
	lockoutDuration  time.Duration
}

// NewAccountService constructs an AccountService using repositories and
// server config.
func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *AccountService {
	return &AccountService{
		db:               db,
		repomanager:      m,
		jwtSecret:        []byte(cfg.SecretKey),
		tokenValidity:    cfg.TokenValidityDuration,
		bcryptCost:       cfg.BcryptCost,
		maxLoginAttempts: cfg.MaxLoginAttempts,
		lockoutDuration:  cfg.LockoutDuration,
	}
}

// Register validates the input, hashes the password, and creates a new
// account with the default role. The plaintext is wiped as soon as the hash
// exists. A duplicate normalized email yields common.ErrDuplicateEmail.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (*models.AccountInfo, error) {
	if err := models.ValidateName(name); err != nil {
		return nil, err
	}
	if err := models.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := models.ValidatePassword(password); err != nil {
		return nil, err
	}

	plain := []byte(password)
	hash, err := auth.HashPassword(plain, s.bcryptCost)
	shared.WipeByteArray(plain)
	if err != nil {
		return nil, common.ErrInternal
	}

	acc := &models.Account{
		Name:         strings.TrimSpace(name),
		Email:        models.NormalizeEmail(email),
		PasswordHash: hash,
		Role:         models.RoleUser,
		IsActive:     true,
	}

	repo := s.repomanager.Accounts(s.db)
	acc, err = repo.Create(ctx, acc)
	if err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, common.ErrInternal
	}

	return acc.Info(), nil
}

// Login verifies the credentials and, on success, returns a signed token
// bound to the account id plus the public projection. The order of checks is
// fixed: unknown email and wrong password are indistinguishable, an active
// lock short-circuits before any password comparison, and an expired lock is
// treated as already cleared.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, *models.AccountInfo, error) {
	repo := s.repomanager.Accounts(s.db)

	acc, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", nil, common.ErrInvalidCredentials
		}
		return "", nil, common.ErrInternal
	}

	now := timeNow()

	if acc.Locked(now) {
		return "", nil, common.ErrAccountLocked
	}

	if !acc.IsActive {
		return "", nil, common.ErrAccountDeactivated
	}

	plain := []byte(password)
	ok := auth.CheckPassword(acc.PasswordHash, plain)
	shared.WipeByteArray(plain)

	if !ok {
		_, lockedUntil, err := repo.RecordLoginFailure(ctx, acc.ID, now, s.maxLoginAttempts, now.Add(s.lockoutDuration))
		if err != nil {
			return "", nil, common.ErrInternal
		}
		// The attempt that trips the threshold already reports the lock.
		if lockedUntil != nil && lockedUntil.After(now) {
			return "", nil, common.ErrAccountLocked
		}
		return "", nil, common.ErrInvalidCredentials
	}

	if err := repo.RecordLoginSuccess(ctx, acc.ID, now); err != nil {
		return "", nil, common.ErrInternal
	}

	token, err := auth.GenerateToken(acc.ID, s.jwtSecret, s.tokenValidity)
	if err != nil {
		return "", nil, common.ErrInternal
	}

	acc.LastLogin = now
	acc.FailedLogins = 0
	acc.LockedUntil = nil

	return token, acc.Info(), nil
}

// Authenticate resolves a bearer token to the account it is bound to. The
// role and activity state are re-read from the store on every call so tokens
// never carry stale privileges. An account that is gone or deactivated makes
// the token invalid.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, common.ErrMissingToken
	}

	accountID, err := auth.ParseAccountID(token, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Accounts(s.db)
	acc, err := repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, common.ErrInternal
	}

	if !acc.IsActive {
		return nil, common.ErrInvalidToken
	}

	return acc, nil
}

// ChangePassword verifies the current password and replaces the stored hash.
// The check and the update run in one transaction so a concurrent change
// cannot interleave. The session token stays valid; no re-login is required.
func (s *AccountService) ChangePassword(ctx context.Context, account *models.Account, currentPassword, newPassword string) error {
	if err := models.ValidatePassword(newPassword); err != nil {
		return err
	}

	plainNew := []byte(newPassword)
	newHash, err := auth.HashPassword(plainNew, s.bcryptCost)
	shared.WipeByteArray(plainNew)
	if err != nil {
		return common.ErrInternal
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		acc, err := repo.GetByID(ctx, account.ID)
		if err != nil {
			return err
		}

		plain := []byte(currentPassword)
		ok := auth.CheckPassword(acc.PasswordHash, plain)
		shared.WipeByteArray(plain)
		if !ok {
			return common.ErrInvalidCredentials
		}

		return repo.UpdatePassword(ctx, acc.ID, newHash)
	})

	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			return common.ErrInvalidCredentials
		}
		// An account that vanished mid-session invalidates the token, same
		// as Authenticate.
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrInvalidToken
		}
		return common.ErrInternal
	}
	return nil
}

// UpdateProfile changes the display name and returns the updated projection.
func (s *AccountService) UpdateProfile(ctx context.Context, account *models.Account, name string) (*models.AccountInfo, error) {
	if err := models.ValidateName(name); err != nil {
		return nil, err
	}

	repo := s.repomanager.Accounts(s.db)
	acc, err := repo.UpdateProfile(ctx, account.ID, strings.TrimSpace(name), account.ProfilePicture)
	if err != nil {
		return nil, common.ErrInternal
	}
	return acc.Info(), nil
}

// Authorize is the capability gate: it fails with common.ErrForbidden unless
// the account's role is in the allowed set.
func (s *AccountService) Authorize(account *models.Account, roles ...models.Role) error {
	for _, role := range roles {
		if account.Role == role {
			return nil
		}
	}
	return common.ErrForbidden
}

// ListAccounts returns the public projections of all active accounts.
// Administrator only.
func (s *AccountService) ListAccounts(ctx context.Context, account *models.Account) ([]*models.AccountInfo, error) {
	if err := s.Authorize(account, models.RoleAdministrator); err != nil {
		return nil, err
	}

	repo := s.repomanager.Accounts(s.db)
	accs, err := repo.ListActive(ctx)
	if err != nil {
		return nil, common.ErrInternal
	}

	infos := make([]*models.AccountInfo, 0, len(accs))
	for _, a := range accs {
		infos = append(infos, a.Info())
	}
	return infos, nil
}

// CountAccounts reports the total number of accounts, used by the health
// endpoint to prove the database answers queries.
func (s *AccountService) CountAccounts(ctx context.Context) (int64, error) {
	repo := s.repomanager.Accounts(s.db)
	n, err := repo.CountAll(ctx)
	if err != nil {
		return 0, common.ErrInternal
	}
	return n, nil
}
