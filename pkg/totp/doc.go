// Package totp implements RFC 6238 time-based one-time passwords used for
// multi-factor login. Codes from the previous, current, and next 30-second
// windows are accepted to tolerate clock drift between the server and the
// authenticator app.
package totp
