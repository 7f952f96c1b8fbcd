// Package store implements the catalog, profile, invoice, coupon, settings
// and user contracts on MongoDB.
//
// Every write that must not race is a conditional single-document update:
// invoice status changes filter on the current status, coupon redemption
// filters on remaining uses, and upgrade archival is one pipeline update.
// Call EnsureIndexes on start to create the unique code indexes.
package store
