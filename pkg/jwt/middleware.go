package jwt

import (
	"net/http"
	"strings"
)

// TokenExtractorFunc defines a function that extracts a token from an HTTP request.
type TokenExtractorFunc func(r *http.Request) (string, error)

// ErrorHandlerFunc renders an authentication failure onto the response writer.
type ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)

// MiddlewareConfig configures JWT middleware behavior.
type MiddlewareConfig[T any] struct {
	Service      *Service           // JWT service for token validation
	Extractor    TokenExtractorFunc // Token extraction strategy (defaults to Bearer)
	ErrorHandler ErrorHandlerFunc   // Failure renderer (defaults to 401 plain text)
}

// Middleware creates JWT middleware with default Bearer token extraction.
// Validates tokens and injects typed claims into request context for
// downstream handlers.
func Middleware[T any](service *Service) func(next http.Handler) http.Handler {
	return MiddlewareWithConfig(MiddlewareConfig[T]{Service: service})
}

// MiddlewareWithConfig creates JWT middleware with custom configuration.
func MiddlewareWithConfig[T any](config MiddlewareConfig[T]) func(next http.Handler) http.Handler {
	if config.Extractor == nil {
		config.Extractor = BearerTokenExtractor
	}
	if config.ErrorHandler == nil {
		config.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := config.Extractor(r)
			if err != nil {
				config.ErrorHandler(w, r, err)
				return
			}

			var claims T
			if err := config.Service.Parse(tokenString, &claims); err != nil {
				config.ErrorHandler(w, r, err)
				return
			}

			ctx := r.Context()
			ctx = SetToken(ctx, tokenString)
			ctx = SetClaims(ctx, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerTokenExtractor extracts JWT tokens from "Authorization: Bearer <token>"
// headers per RFC 6750.
func BearerTokenExtractor(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrInvalidToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", ErrInvalidToken
	}

	return parts[1], nil
}
