// Package auth exposes the authentication HTTP surface: registration,
// login, the password-reset flow and MFA enrollment. It also provides the
// bearer-token middleware other modules mount on their protected routes.
package auth
