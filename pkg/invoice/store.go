package invoice

import (
	"context"
	"time"
)

// StatusChange is the write performed by a status transition.
type StatusChange struct {
	From         Status
	To           Status
	At           time.Time
	CancelReason string
	PaymentData  map[string]any
}

// Store persists invoices. Status changes are conditional writes on the
// stored status; nothing spans documents.
type Store interface {
	Create(ctx context.Context, inv *Invoice) error
	// Get returns ErrInvoiceNotFound when id is unknown.
	Get(ctx context.Context, id string) (*Invoice, error)
	List(ctx context.Context, f Filter) ([]Invoice, error)
	// ChangeStatus applies c when the stored status equals c.From and
	// reports whether it did.
	ChangeStatus(ctx context.Context, id string, c StatusChange) (bool, error)
	// ExpireOverdue moves pending invoices whose expiry is at or before now to expired.
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
	// PaidUnapplied lists paid invoices without AppliedAt.
	PaidUnapplied(ctx context.Context) ([]Invoice, error)
	MarkApplied(ctx context.Context, id string, at time.Time) error
}
