// Package payment reconciles external payment outcomes with profile entitlements.
//
// ConfirmPayment marks an invoice paid, counts its coupon and applies the
// invoice items to the profile: plan lines replace (or, for renewals of the
// held plan, extend) the plan window and grant the plan's included upgrades,
// upgrade lines follow the stacking policy. Payment always leaves the profile
// active and visible.
//
// Invoice and profile live in different documents. A crash between the two
// writes leaves a paid invoice without AppliedAt; RetryUnapplied replays those.
// Applying is keyed by invoice id in the profile's payment history, so replays
// never grant twice.
package payment
