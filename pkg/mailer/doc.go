// Package mailer provides transactional email delivery behind a small Sender
// interface, with a Postmark implementation for production and a filesystem
// sender for local development.
package mailer
