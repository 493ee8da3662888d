// Package account exposes the account trial-status read endpoint.
package account
