// Package invoice generates itemized invoices for plan and upgrade purchases
// and tracks their payment status.
//
// An invoice starts pending and moves once to paid, cancelled or expired.
// Totals are always derived from the items and the frozen coupon snapshot.
// Pending invoices expire lazily whenever invoices are listed.
//
// Paid invoices carry AppliedAt once Payment reconciliation has written them
// to the profile; PaidUnapplied returns the ones still waiting so the step can
// be retried.
package invoice
