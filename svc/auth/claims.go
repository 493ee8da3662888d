package auth

import (
	"time"

	"github.com/trialbase/trialbase/pkg/jwt"
)

// DefaultSessionTTL is the default lifetime of a session token.
const DefaultSessionTTL = 7 * 24 * time.Hour

// SessionClaims is the payload embedded in session tokens. It carries the
// tenant and role context needed to authorize requests without a user lookup.
type SessionClaims struct {
	jwt.StandardClaims
	UserID    string `json:"uid"`
	AccountID string `json:"acc"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

func newSessionClaims(user *User, ttl time.Duration) SessionClaims {
	return SessionClaims{
		StandardClaims: jwt.NewStandardClaims(user.ID.String(), ttl),
		UserID:         user.ID.String(),
		AccountID:      user.AccountID.String(),
		Email:          user.Email,
		Role:           string(user.Role),
	}
}
