// Package message composes the human-readable payload sent to the company
// contact channel after a purchase, renewal or upgrade request. Delivery is
// left to the caller.
package message
