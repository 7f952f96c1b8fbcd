package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jackira01/scort-web-site-sub002/pkg/catalog"
	"github.com/jackira01/scort-web-site-sub002/pkg/coupon"
	"github.com/jackira01/scort-web-site-sub002/pkg/logger"
)

// DefaultTTL is how long a pending invoice waits for payment.
const DefaultTTL = 24 * time.Hour

// Config holds invoice configuration.
type Config struct {
	TTL time.Duration `env:"INVOICE_TTL" envDefault:"24h"`
}

// CouponApplier computes coupon discounts.
type CouponApplier interface {
	Apply(ctx context.Context, req coupon.ApplyRequest) (coupon.Result, error)
}

// PlanSelection is the plan part of a purchase.
type PlanSelection struct {
	Code    string
	Days    int
	Renewal bool
}

// GenerateRequest describes what an invoice bills.
type GenerateRequest struct {
	ProfileID  string
	UserID     string
	OrderID    string
	Plan       *PlanSelection
	Upgrades   []string
	CouponCode string
}

// Service manages the invoice lifecycle.
type Service struct {
	store   Store
	catalog catalog.Reader
	coupons CouponApplier
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTTL sets the pending window of new invoices.
func WithTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates an invoice service. Panics if a dependency is nil.
func NewService(store Store, cat catalog.Reader, coupons CouponApplier, opts ...ServiceOption) *Service {
	if store == nil {
		panic("invoice: Store is required")
	}
	if cat == nil {
		panic("invoice: catalog Reader is required")
	}
	if coupons == nil {
		panic("invoice: CouponApplier is required")
	}
	s := &Service{
		store:   store,
		catalog: cat,
		coupons: coupons,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate builds and stores a pending invoice for req.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*Invoice, error) {
	if req.Plan == nil && len(req.Upgrades) == 0 {
		return nil, ErrNoItems
	}

	items, err := s.buildItems(ctx, req)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	inv := &Invoice{
		ID:        uuid.NewString(),
		ProfileID: req.ProfileID,
		UserID:    req.UserID,
		OrderID:   req.OrderID,
		Items:     items,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		UpdatedAt: now,
	}
	inv.Recompute()

	if req.CouponCode != "" {
		if err := s.applyCoupon(ctx, inv, req); err != nil {
			return nil, err
		}
	}
	inv.Recompute()

	if err := s.store.Create(ctx, inv); err != nil {
		return nil, errors.Join(errors.New("create invoice"), err)
	}
	s.logger.InfoContext(ctx, "invoice generated",
		logger.InvoiceID(inv.ID),
		logger.ProfileID(inv.ProfileID),
		slog.Int64("total", inv.TotalAmount),
	)
	return inv, nil
}

// buildItems resolves the plan and every upgrade concurrently; the reads are
// independent and the results keep request order.
func (s *Service) buildItems(ctx context.Context, req GenerateRequest) ([]Item, error) {
	var planItem *Item
	upgradeItems := make([]Item, len(req.Upgrades))

	g, gctx := errgroup.WithContext(ctx)
	if req.Plan != nil {
		sel := *req.Plan
		g.Go(func() error {
			it, err := s.planItem(gctx, sel)
			if err != nil {
				return err
			}
			planItem = &it
			return nil
		})
	}
	for i, code := range req.Upgrades {
		g.Go(func() error {
			it, err := s.upgradeItem(gctx, code)
			if err != nil {
				return err
			}
			upgradeItems[i] = it
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(upgradeItems)+1)
	if planItem != nil {
		items = append(items, *planItem)
	}
	return append(items, upgradeItems...), nil
}

func (s *Service) planItem(ctx context.Context, sel PlanSelection) (Item, error) {
	plan, err := s.catalog.Plan(ctx, sel.Code)
	if err != nil {
		return Item{}, err
	}
	if !plan.Active {
		return Item{}, fmt.Errorf("%w: %s", catalog.ErrPlanInactive, plan.Code)
	}
	variant, ok := plan.Variant(sel.Days)
	if !ok {
		return Item{}, fmt.Errorf("%w: %s has no %d days variant", catalog.ErrVariantNotFound, plan.Code, sel.Days)
	}
	return Item{
		Type:     ItemPlan,
		Code:     plan.Code,
		Name:     plan.Name,
		Days:     variant.Days,
		Price:    variant.Price,
		Quantity: 1,
		Renewal:  sel.Renewal,
	}, nil
}

func (s *Service) upgradeItem(ctx context.Context, code string) (Item, error) {
	u, err := s.catalog.Upgrade(ctx, code)
	if err != nil {
		return Item{}, err
	}
	if !u.Active {
		return Item{}, fmt.Errorf("%w: %s", catalog.ErrUpgradeInactive, u.Code)
	}
	return Item{
		Type:     ItemUpgrade,
		Code:     u.Code,
		Name:     u.Name,
		Hours:    u.DurationHours,
		Price:    u.Price,
		Quantity: 1,
	}, nil
}

// applyCoupon discounts the subtotal and freezes the coupon on inv. A coupon
// that assigns or swaps the plan replaces the plan line first.
func (s *Service) applyCoupon(ctx context.Context, inv *Invoice, req GenerateRequest) error {
	applyReq := coupon.ApplyRequest{
		Code:          req.CouponCode,
		OriginalPrice: inv.Subtotal,
	}
	if req.Plan != nil {
		applyReq.PlanCode = req.Plan.Code
		applyReq.VariantDays = req.Plan.Days
	} else if len(req.Upgrades) == 1 {
		applyReq.UpgradeCode = req.Upgrades[0]
	}

	res, err := s.coupons.Apply(ctx, applyReq)
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}

	snap := res.Snapshot()
	if req.Plan != nil && res.AssignedPlanCode != "" &&
		(res.AssignedPlanCode != req.Plan.Code || res.VariantDays != req.Plan.Days) {
		if err := s.swapPlanItem(ctx, inv, res.AssignedPlanCode, res.VariantDays); err != nil {
			return err
		}
		inv.Recompute()
		discount := res.Discount
		if res.Coupon.Type == coupon.TypePlanAssignment {
			discount = inv.Subtotal
		}
		discount = min(discount, inv.Subtotal)
		snap.OriginalAmount = inv.Subtotal
		snap.DiscountAmount = discount
		snap.FinalAmount = inv.Subtotal - discount
	}
	inv.Coupon = snap
	return nil
}

func (s *Service) swapPlanItem(ctx context.Context, inv *Invoice, planCode string, days int) error {
	plan, err := s.catalog.Plan(ctx, planCode)
	if err != nil {
		return err
	}
	variant, ok := plan.Variant(days)
	if !ok {
		if variant, ok = plan.CheapestVariant(); !ok {
			return fmt.Errorf("%w: %s", catalog.ErrVariantNotFound, plan.Code)
		}
	}
	for i, it := range inv.Items {
		if it.Type == ItemPlan {
			inv.Items[i].Code = plan.Code
			inv.Items[i].Name = plan.Name
			inv.Items[i].Days = variant.Days
			inv.Items[i].Price = variant.Price
		}
	}
	return nil
}

// Get returns the invoice with id.
func (s *Service) Get(ctx context.Context, id string) (*Invoice, error) {
	return s.store.Get(ctx, id)
}

// List expires overdue pending invoices and then returns the matching ones.
func (s *Service) List(ctx context.Context, f Filter) ([]Invoice, error) {
	if _, err := s.ExpireOverdue(ctx); err != nil {
		return nil, err
	}
	return s.store.List(ctx, f)
}

// ExpireOverdue moves every overdue pending invoice to expired.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	n, err := s.store.ExpireOverdue(ctx, s.now().UTC())
	if err != nil {
		return 0, errors.Join(errors.New("expire overdue invoices"), err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "overdue invoices expired", slog.Int("count", n))
	}
	return n, nil
}

// PendingForProfile returns the live pending invoice of a profile, if any.
func (s *Service) PendingForProfile(ctx context.Context, profileID string) (*Invoice, bool, error) {
	pending, err := s.List(ctx, Filter{ProfileID: profileID, Status: StatusPending, Limit: 1})
	if err != nil {
		return nil, false, err
	}
	if len(pending) == 0 {
		return nil, false, nil
	}
	return &pending[0], true, nil
}

// MarkPaid moves a pending invoice to paid. The returned bool is false when the
// invoice was already paid, so webhook retries are harmless.
func (s *Service) MarkPaid(ctx context.Context, id string, paymentData map[string]any) (*Invoice, bool, error) {
	return s.transition(ctx, id, EventPay, StatusChange{PaymentData: paymentData})
}

// Cancel moves a pending invoice to cancelled.
func (s *Service) Cancel(ctx context.Context, id, reason string) (*Invoice, error) {
	inv, _, err := s.transition(ctx, id, EventCancel, StatusChange{CancelReason: reason})
	return inv, err
}

func (s *Service) transition(ctx context.Context, id string, event Event, change StatusChange) (*Invoice, bool, error) {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if event == EventPay && inv.Status == StatusPaid {
		return inv, false, nil
	}

	to, err := next(ctx, inv.Status, event)
	if err != nil {
		return inv, false, err
	}

	change.From = inv.Status
	change.To = to
	change.At = s.now().UTC()
	ok, err := s.store.ChangeStatus(ctx, id, change)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		// lost a race with another writer; report against the stored state
		current, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if event == EventPay && current.Status == StatusPaid {
			return current, false, nil
		}
		_, err = next(ctx, current.Status, event)
		if err == nil {
			err = ErrInvalidStatus
		}
		return current, false, err
	}

	updated, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	s.logger.InfoContext(ctx, "invoice status changed",
		logger.InvoiceID(id),
		slog.String("from", string(change.From)),
		slog.String("to", string(to)),
	)
	return updated, true, nil
}

// PaidUnapplied lists paid invoices not yet applied to their profile.
func (s *Service) PaidUnapplied(ctx context.Context) ([]Invoice, error) {
	return s.store.PaidUnapplied(ctx)
}

// MarkApplied records that a paid invoice reached its profile.
func (s *Service) MarkApplied(ctx context.Context, id string) error {
	return s.store.MarkApplied(ctx, id, s.now().UTC())
}
