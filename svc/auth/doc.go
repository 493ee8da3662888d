// Package auth implements registration, password login with optional TOTP
// second factor, session token issuance and the password-reset flow.
//
// Credential failures surface as ErrInvalidCredentials regardless of cause
// (unknown email, wrong password, bad MFA code) so responses never reveal
// whether an account exists. The password-reset flow is likewise
// enumeration-safe: requesting a reset for an unknown email succeeds
// silently.
package auth
