// Package profile models the entitlements embedded in a marketplace profile:
// the plan window, upgrade grants with their history, and the activity and
// visibility flags derived from payments and expiry.
//
// All mutations are plain methods on Profile. Stores persist whole documents
// and offer a few conditional per-document writes used by the expiry sweep.
package profile
