// Package models defines the persistent entities of the hazard platform
// backend. Account is the single identity record: who the user is, how they
// prove it, and the lockout state guarding repeated failures.
package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/coastwatch/hazardplatform/internal/common"
)

// Role is a coarse capability label gating access to privileged operations.
type Role string

const (
	RoleUser          Role = "user"
	RoleOfficial      Role = "official"
	RoleAnalyst       Role = "analyst"
	RoleAdministrator Role = "administrator"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleOfficial, RoleAnalyst, RoleAdministrator:
		return true
	}
	return false
}

const (
	NameMinLength     = 2
	NameMaxLength     = 50
	PasswordMinLength = 6
)

var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

// Account is a single user's identity and credential record.
// PasswordHash is write-only: it never appears in any response payload.
type Account struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	Role           Role
	IsActive       bool
	LastLogin      time.Time
	FailedLogins   int
	LockedUntil    *time.Time
	ProfilePicture string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Locked reports whether the account is under an active lockout at the given
// instant. An expired lock counts as absent.
func (a *Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// Info returns the public projection of the account used in API responses.
func (a *Account) Info() *AccountInfo {
	return &AccountInfo{
		ID:             a.ID,
		Name:           a.Name,
		Email:          a.Email,
		Role:           a.Role,
		LastLogin:      a.LastLogin,
		CreatedAt:      a.CreatedAt,
		ProfilePicture: a.ProfilePicture,
	}
}

// AccountInfo is the safe-to-serialize view of an Account. It carries
// neither the password hash nor the lockout counters.
type AccountInfo struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	LastLogin      time.Time `json:"last_login,omitzero"`
	CreatedAt      time.Time `json:"created_at,omitzero"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
}

// NormalizeEmail lowercases and trims an email so lookups and the uniqueness
// constraint are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateName checks the display name length after trimming.
func ValidateName(name string) error {
	n := strings.TrimSpace(name)
	if len(n) < NameMinLength || len(n) > NameMaxLength {
		return fmt.Errorf("%w: name must be %d-%d characters", common.ErrValidation, NameMinLength, NameMaxLength)
	}
	return nil
}

// ValidateEmail checks the normalized email against the accepted pattern.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(NormalizeEmail(email)) {
		return fmt.Errorf("%w: invalid email address", common.ErrValidation)
	}
	return nil
}

// ValidatePassword checks the minimum plaintext password length.
func ValidatePassword(password string) error {
	if len(password) < PasswordMinLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, PasswordMinLength)
	}
	return nil
}
