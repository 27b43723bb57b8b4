// Package common defines shared constants and sentinel errors used across
// the hazard platform backend. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already registered")

	// Service-level errors (generic/internal flow control).
	ErrInternal   = errors.New("internal error")
	ErrValidation = errors.New("validation error")

	// Login errors. ErrInvalidCredentials is deliberately the same whether
	// the email is unknown or the password is wrong, so callers cannot
	// probe which emails are registered.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrAccountDeactivated = errors.New("account is deactivated")

	// Token lifecycle errors.
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Authorization errors.
	ErrForbidden = errors.New("forbidden")
)
