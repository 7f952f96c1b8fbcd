package coupon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/jackira01/scort-web-site-sub002/pkg/catalog"
)

// Store persists coupons.
type Store interface {
	// GetByCode returns ErrCouponNotFound when no coupon has the code.
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	// IncrementUses adds one use when the coupon still has uses left and
	// reports whether it did. The check and the increment are one atomic write.
	IncrementUses(ctx context.Context, code string) (bool, error)
}

// PlanLookup resolves the plan a coupon swaps to.
type PlanLookup interface {
	Plan(ctx context.Context, code string) (catalog.PlanDefinition, error)
}

// Validation is the outcome of Validate.
type Validation struct {
	Valid   bool    `json:"valid"`
	Reason  Reason  `json:"reason,omitempty"`
	Message string  `json:"message,omitempty"`
	Coupon  *Coupon `json:"coupon,omitempty"`
}

// ApplyRequest describes the price a coupon is applied to.
type ApplyRequest struct {
	Code          string
	OriginalPrice int64
	PlanCode      string
	VariantDays   int
	UpgradeCode   string
}

// Result is the outcome of Apply. When Success is false the caller must not
// use any of the amounts.
type Result struct {
	Success          bool    `json:"success"`
	Reason           Reason  `json:"reason,omitempty"`
	Message          string  `json:"message,omitempty"`
	OriginalPrice    int64   `json:"originalPrice"`
	Discount         int64   `json:"discount"`
	FinalPrice       int64   `json:"finalPrice"`
	AssignedPlanCode string  `json:"assignedPlanCode,omitempty"`
	VariantDays      int     `json:"variantDays,omitempty"`
	Coupon           *Coupon `json:"-"`
}

// Err returns nil on success and an ErrCouponRejected carrying the reason otherwise.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrCouponRejected, r.Message)
}

// Snapshot freezes the applied coupon for an invoice.
func (r Result) Snapshot() *Snapshot {
	if !r.Success || r.Coupon == nil {
		return nil
	}
	return &Snapshot{
		Code:           r.Coupon.Code,
		Type:           r.Coupon.Type,
		Value:          r.Coupon.Value,
		OriginalAmount: r.OriginalPrice,
		DiscountAmount: r.Discount,
		FinalAmount:    r.FinalPrice,
		PlanCode:       r.AssignedPlanCode,
		VariantDays:    r.VariantDays,
	}
}

func failed(reason Reason) Result {
	return Result{Reason: reason, Message: reason.Message()}
}

// Engine validates coupons and computes discounts.
type Engine struct {
	store  Store
	plans  PlanLookup
	now    func() time.Time
	logger *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a coupon engine. Panics if store or plans is nil.
func NewEngine(store Store, plans PlanLookup, opts ...EngineOption) *Engine {
	if store == nil {
		panic("coupon: Store is required")
	}
	if plans == nil {
		panic("coupon: PlanLookup is required")
	}
	e := &Engine{
		store:  store,
		plans:  plans,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NormalizeCode upper-cases and trims a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks existence, activity, validity window, remaining uses and
// applicability, in that order. It never writes.
func (e *Engine) Validate(ctx context.Context, code string, target Target) (Validation, error) {
	c, err := e.store.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			return Validation{Reason: ReasonNotFound, Message: ReasonNotFound.Message()}, nil
		}
		return Validation{}, err
	}
	if reason, ok := c.check(e.now(), target); !ok {
		return Validation{Reason: reason, Message: reason.Message(), Coupon: c}, nil
	}
	return Validation{Valid: true, Coupon: c}, nil
}

// Apply validates the coupon and computes the discounted price. Business
// failures are reported in the Result; only store failures return an error.
func (e *Engine) Apply(ctx context.Context, req ApplyRequest) (Result, error) {
	v, err := e.Validate(ctx, req.Code, Target{PlanCode: req.PlanCode, UpgradeCode: req.UpgradeCode})
	if err != nil {
		return Result{}, err
	}
	if !v.Valid {
		return failed(v.Reason), nil
	}
	c := v.Coupon

	res := Result{
		OriginalPrice:    req.OriginalPrice,
		AssignedPlanCode: req.PlanCode,
		VariantDays:      req.VariantDays,
		Coupon:           c,
	}

	switch c.Type {
	case TypePlanAssignment:
		if c.PlanCode != "" {
			res.AssignedPlanCode = c.PlanCode
			res.VariantDays = c.VariantDays
		}
	case TypePercentage, TypeFixedAmount:
		if c.PlanCode != "" {
			variant, ok, err := e.swapVariant(ctx, c.PlanCode, req.VariantDays)
			if err != nil {
				return Result{}, err
			}
			if !ok {
				return failed(ReasonPlanUnavailable), nil
			}
			res.AssignedPlanCode = c.PlanCode
			res.VariantDays = variant.Days
			res.OriginalPrice = variant.Price
		}
	default:
		return failed(ReasonNotApplicable), nil
	}

	if res.OriginalPrice <= 0 {
		return failed(ReasonFreePlan), nil
	}

	var discount int64
	switch c.Type {
	case TypePercentage:
		discount = int64(math.Round(float64(res.OriginalPrice) * c.Value / 100))
	case TypeFixedAmount:
		discount = int64(math.Round(c.Value))
	case TypePlanAssignment:
		discount = res.OriginalPrice
	}

	res.FinalPrice = max(0, res.OriginalPrice-discount)
	res.Discount = res.OriginalPrice - res.FinalPrice
	res.Success = true
	return res, nil
}

// swapVariant picks the requested variant of the swap plan when it exists and
// the cheapest one otherwise.
func (e *Engine) swapVariant(ctx context.Context, planCode string, days int) (catalog.Variant, bool, error) {
	plan, err := e.plans.Plan(ctx, planCode)
	if err != nil {
		if errors.Is(err, catalog.ErrPlanNotFound) {
			return catalog.Variant{}, false, nil
		}
		return catalog.Variant{}, false, err
	}
	if !plan.Active {
		return catalog.Variant{}, false, nil
	}
	if v, ok := plan.Variant(days); ok && days > 0 {
		return v, true, nil
	}
	v, ok := plan.CheapestVariant()
	return v, ok, nil
}

// Redeem counts one use of the coupon. It is called once per confirmed payment.
func (e *Engine) Redeem(ctx context.Context, code string) error {
	code = NormalizeCode(code)
	ok, err := e.store.IncrementUses(ctx, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCouponExhausted
	}
	e.logger.InfoContext(ctx, "coupon redeemed", slog.String("coupon_code", code))
	return nil
}
