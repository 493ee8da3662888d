// Package subscription implements the billing-plan state machine.
//
// Each account has at most one subscription. The subscription tracks the
// plan, status, billing period and the payment provider that backs it.
// Provider interactions go through the Provider capability interface so
// implementations (Stripe, the local sentinel, test doubles) can be swapped
// through a name-keyed registry populated at the wiring root.
//
// Trial signups degrade gracefully: when the remote provider fails during
// trial subscription creation, a locally tracked subscription is created
// instead so signup never blocks on a third-party outage.
package subscription
