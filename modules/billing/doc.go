// Package billing exposes the invoice HTTP surface: create, read, list and
// PDF attachment.
package billing
