package auth

import (
	"time"

	"github.com/google/uuid"
)

// Role is the permission level a user holds within their account.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// User belongs to exactly one account. Email is globally unique across all
// accounts. Reset-token fields are set by the password-reset flow and
// cleared on successful reset (single-use).
type User struct {
	ID                 uuid.UUID
	AccountID          uuid.UUID
	Email              string
	PasswordHash       []byte
	Role               Role
	FirstName          string
	LastName           string
	OnboardingComplete bool
	ResetTokenHash     string // hex SHA-256 of the raw reset token
	ResetTokenExpires  *time.Time
	MFAEnabled         bool
	MFASecret          string // base32 TOTP secret; set before MFAEnabled flips
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
