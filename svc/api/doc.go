// Package api exposes the entitlement engine, coupons, invoices, payments,
// the expiry sweep and ranked listings as a JSON API on a chi router.
//
// Every response is an Envelope. Failures carry an ErrorDetail whose code is
// the errs code of the underlying error, with the HTTP status derived from
// its kind: validation 400, not found 404, business rule 409, integrity 422,
// anything else 500.
//
// Caller identity is read from the X-User-ID and X-Admin headers, which the
// gateway in front of the service is expected to set.
package api
