package auth

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailAlreadyExists   = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidResetToken    = errors.New("invalid or expired reset token")
	ErrMFAAlreadyEnabled    = errors.New("mfa already enabled")
	ErrMFANotConfigured     = errors.New("mfa secret not configured")
	ErrMethodNotImplemented = errors.New("login method not implemented")
	ErrStoreNil             = errors.New("user store cannot be nil")
)
