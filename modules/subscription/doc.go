// Package subscription exposes the subscription management HTTP surface:
// create, read, plan update, cancel and resume.
package subscription
