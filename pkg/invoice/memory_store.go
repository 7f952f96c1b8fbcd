package invoice

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu       sync.Mutex
	invoices map[string]*Invoice
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{invoices: make(map[string]*Invoice)}
}

func (s *MemoryStore) Create(_ context.Context, inv *Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.ID] = clone(inv)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	return clone(inv), nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Invoice
	for _, inv := range s.invoices {
		if f.Matches(inv) {
			out = append(out, *clone(inv))
		}
	}
	slices.SortFunc(out, func(a, b Invoice) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) ChangeStatus(_ context.Context, id string, c StatusChange) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return false, ErrInvoiceNotFound
	}
	if inv.Status != c.From {
		return false, nil
	}
	applyChange(inv, c)
	return true, nil
}

func (s *MemoryStore) ExpireOverdue(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, inv := range s.invoices {
		if inv.IsOverdue(now) {
			applyChange(inv, StatusChange{From: StatusPending, To: StatusExpired, At: now})
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) PaidUnapplied(_ context.Context) ([]Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Invoice
	for _, inv := range s.invoices {
		if inv.Status == StatusPaid && inv.AppliedAt == nil {
			out = append(out, *clone(inv))
		}
	}
	slices.SortFunc(out, func(a, b Invoice) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *MemoryStore) MarkApplied(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	if inv.AppliedAt == nil {
		inv.AppliedAt = &at
		inv.UpdatedAt = at
	}
	return nil
}

func applyChange(inv *Invoice, c StatusChange) {
	at := c.At
	inv.Status = c.To
	inv.UpdatedAt = at
	switch c.To {
	case StatusPaid:
		inv.PaidAt = &at
		if c.PaymentData != nil {
			inv.PaymentData = maps.Clone(c.PaymentData)
		}
	case StatusCancelled:
		inv.CancelledAt = &at
		inv.CancelReason = c.CancelReason
	}
}

func clone(inv *Invoice) *Invoice {
	c := *inv
	c.Items = slices.Clone(inv.Items)
	if inv.Coupon != nil {
		snap := *inv.Coupon
		c.Coupon = &snap
	}
	c.PaymentData = maps.Clone(inv.PaymentData)
	return &c
}
