package auth

import (
	"errors"
	"net/http"

	"github.com/trialbase/trialbase/core"
	"github.com/trialbase/trialbase/pkg/jwt"
	authsvc "github.com/trialbase/trialbase/svc/auth"
)

// Middleware returns bearer-token middleware that parses session claims
// into the request context. Expired tokens, invalid tokens and a missing
// signing key each render a distinct error key so clients can distinguish
// "log in again" from "server misconfigured".
func Middleware(tokens *jwt.Service) func(http.Handler) http.Handler {
	return jwt.MiddlewareWithConfig(jwt.MiddlewareConfig[authsvc.SessionClaims]{
		Service:      tokens,
		ErrorHandler: renderAuthError,
	})
}

func renderAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var resp core.Response
	switch {
	case errors.Is(err, jwt.ErrExpiredToken):
		resp = core.JSONError(core.NewHTTPError(http.StatusUnauthorized, "token_expired"))
	case errors.Is(err, jwt.ErrMissingSigningKey):
		resp = core.JSONError(core.NewHTTPError(http.StatusInternalServerError, "auth_misconfigured"))
	default:
		resp = core.JSONError(core.NewHTTPError(http.StatusUnauthorized, "invalid_token"))
	}
	_ = resp.Render(w, r)
}

// SessionFromContext returns the parsed session claims, or false when the
// request did not pass the middleware.
func SessionFromContext(r *http.Request) (authsvc.SessionClaims, bool) {
	return jwt.GetClaims[authsvc.SessionClaims](r.Context())
}
