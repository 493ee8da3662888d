// Package jwt implements HMAC-SHA256 signed tokens used for API sessions.
//
// Validation failures are distinguishable: an expired token returns
// ErrExpiredToken, a bad signature returns ErrInvalidSignature, and a service
// constructed without a signing key fails with ErrMissingSigningKey. Callers
// map these onto their own error surfaces.
package jwt
