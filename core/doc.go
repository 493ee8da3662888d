// Package core provides the shared HTTP surface primitives: the Response
// contract handlers return, JSON rendering, the HTTPError taxonomy used to
// map domain errors onto status codes, and field-level validation errors.
package core
