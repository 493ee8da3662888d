// Package account owns tenant accounts and their trial state.
//
// An account is the top-level tenant entity. It carries the authoritative
// trial flag and trial window; derived trial properties (active, expired,
// days remaining) are computed from those fields. Plan downgrades on trial
// expiration are handled by the subscription service, not here.
package account
