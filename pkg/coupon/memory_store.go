package coupon

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store keyed by code.
type MemoryStore struct {
	mu      sync.Mutex
	coupons map[string]Coupon
}

// NewMemoryStore returns a MemoryStore holding the given coupons.
func NewMemoryStore(coupons ...Coupon) *MemoryStore {
	s := &MemoryStore{coupons: make(map[string]Coupon, len(coupons))}
	for _, c := range coupons {
		s.coupons[NormalizeCode(c.Code)] = c
	}
	return s
}

func (s *MemoryStore) GetByCode(_ context.Context, code string) (*Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[code]
	if !ok {
		return nil, ErrCouponNotFound
	}
	return &c, nil
}

func (s *MemoryStore) IncrementUses(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[code]
	if !ok {
		return false, ErrCouponNotFound
	}
	if !c.HasUsesLeft() {
		return false, nil
	}
	c.CurrentUses++
	s.coupons[code] = c
	return true, nil
}
