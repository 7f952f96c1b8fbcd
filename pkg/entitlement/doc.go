// Package entitlement is the rule engine behind every plan and upgrade
// purchase: default plan assignment, plan purchase, renewal and change,
// upgrade purchase and the validate-before-purchase checks.
//
// Free or admin purchases are applied at once. Paid ones open an invoice
// through the invoice service and are applied later by payment
// reconciliation. All checks (ownership, duplicate orders, pending invoices,
// dependencies, stacking and per-user limits) run before any write, and each
// operation holds a short-lived lock on the profile and the order id.
package entitlement
