package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackira01/scort-web-site-sub002/pkg/catalog"
	"github.com/jackira01/scort-web-site-sub002/pkg/logger"
	"github.com/jackira01/scort-web-site-sub002/pkg/message"
	"github.com/jackira01/scort-web-site-sub002/pkg/profile"
)

// PlanPurchase asks for a plan on a profile. UserID, when set, must own the profile.
type PlanPurchase struct {
	ProfileID   string
	UserID      string
	PlanCode    string
	VariantDays int
	CouponCode  string
	OrderID     string
	Admin       bool
}

// PlanRenewal extends the plan a profile already holds.
type PlanRenewal struct {
	ProfileID   string
	UserID      string
	VariantDays int
	CouponCode  string
	OrderID     string
	Admin       bool
}

// PlanChange moves an active plan to a better tier.
type PlanChange struct {
	ProfileID   string
	UserID      string
	PlanCode    string
	VariantDays int
	CouponCode  string
	OrderID     string
	Admin       bool
}

// AssignDefaultPlan puts a profile without an active plan on the free
// variant of the default plan.
func (e *Engine) AssignDefaultPlan(ctx context.Context, profileID string) (*Outcome, error) {
	unlock, err := e.lock(ctx, profileID, "")
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := e.loadProfile(ctx, profileID, "")
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	if active := p.ActivePlan(now); active != nil {
		return nil, fmt.Errorf("%w: %s", ErrActivePlan, active.PlanCode)
	}

	plan, err := e.DefaultPlan(ctx)
	if err != nil {
		return nil, err
	}
	variant, ok := plan.FreeVariant()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDefaultPlanNotFree, plan.Code)
	}
	if err := e.checkLimits(ctx, p, plan, true, now); err != nil {
		return nil, err
	}

	return e.execute(ctx, p, operation{
		kind:    message.KindPurchase,
		plan:    &plan,
		variant: variant,
	}, now)
}

// PurchasePlan buys a plan variant. Buying the plan the profile already holds
// is a renewal; any other plan must wait until the current one expires or go
// through UpgradePlan.
func (e *Engine) PurchasePlan(ctx context.Context, req PlanPurchase) (*Outcome, error) {
	if req.VariantDays < 0 {
		return nil, ErrInvalidVariantDays
	}
	unlock, err := e.lock(ctx, req.ProfileID, req.OrderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := e.loadProfile(ctx, req.ProfileID, req.UserID)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()

	op, err := e.checkPurchase(ctx, p, req, now)
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, p, op, now)
}

func (e *Engine) checkPurchase(ctx context.Context, p *profile.Profile, req PlanPurchase, now time.Time) (operation, error) {
	if err := e.checkOrder(p, req.OrderID); err != nil {
		return operation{}, err
	}

	code := catalog.NormalizeCode(req.PlanCode)
	if active := p.ActivePlan(now); active != nil {
		if active.PlanCode != code {
			return operation{}, fmt.Errorf("%w: %s", ErrActivePlan, active.PlanCode)
		}
		e.logger.DebugContext(ctx, "purchase of held plan routed to renewal",
			logger.ProfileID(p.ID),
			slog.String("plan_code", code),
		)
		return e.checkRenewal(ctx, p, PlanRenewal{
			ProfileID:   req.ProfileID,
			VariantDays: req.VariantDays,
			CouponCode:  req.CouponCode,
			OrderID:     req.OrderID,
			Admin:       req.Admin,
		}, now)
	}

	plan, variant, err := e.resolveVariant(ctx, code, req.VariantDays)
	if err != nil {
		return operation{}, err
	}
	if err := e.ensureNoPending(ctx, p.ID); err != nil {
		return operation{}, err
	}
	if err := e.checkLimits(ctx, p, plan, variant.IsFree(), now); err != nil {
		return operation{}, err
	}
	return operation{
		kind:       message.KindPurchase,
		plan:       &plan,
		variant:    variant,
		couponCode: req.CouponCode,
		orderID:    req.OrderID,
		admin:      req.Admin,
		suspend:    true,
	}, nil
}

// RenewPlan extends the held plan by a variant, counting from the current
// expiry or from now when it already lapsed.
func (e *Engine) RenewPlan(ctx context.Context, req PlanRenewal) (*Outcome, error) {
	if req.VariantDays < 0 {
		return nil, ErrInvalidVariantDays
	}
	unlock, err := e.lock(ctx, req.ProfileID, req.OrderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := e.loadProfile(ctx, req.ProfileID, req.UserID)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()

	op, err := e.checkRenewal(ctx, p, req, now)
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, p, op, now)
}

func (e *Engine) checkRenewal(ctx context.Context, p *profile.Profile, req PlanRenewal, now time.Time) (operation, error) {
	if err := e.checkOrder(p, req.OrderID); err != nil {
		return operation{}, err
	}
	if p.Plan == nil {
		return operation{}, profile.ErrNoPlan
	}
	plan, variant, err := e.resolveVariant(ctx, p.Plan.PlanCode, req.VariantDays)
	if err != nil {
		return operation{}, err
	}
	if err := e.ensureNoPending(ctx, p.ID); err != nil {
		return operation{}, err
	}
	// a lapsed plan comes back like a new one and counts against the caps again
	if !p.HasActivePlan(now) {
		if err := e.checkLimits(ctx, p, plan, variant.IsFree(), now); err != nil {
			return operation{}, err
		}
	}
	return operation{
		kind:       message.KindRenewal,
		plan:       &plan,
		variant:    variant,
		renewal:    true,
		couponCode: req.CouponCode,
		orderID:    req.OrderID,
		admin:      req.Admin,
	}, nil
}

// UpgradePlan replaces an active plan with a strictly better tier. The new
// window starts now.
func (e *Engine) UpgradePlan(ctx context.Context, req PlanChange) (*Outcome, error) {
	if req.VariantDays < 0 {
		return nil, ErrInvalidVariantDays
	}
	unlock, err := e.lock(ctx, req.ProfileID, req.OrderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := e.loadProfile(ctx, req.ProfileID, req.UserID)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()

	op, err := e.checkPlanChange(ctx, p, req, now)
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, p, op, now)
}

func (e *Engine) checkPlanChange(ctx context.Context, p *profile.Profile, req PlanChange, now time.Time) (operation, error) {
	if err := e.checkOrder(p, req.OrderID); err != nil {
		return operation{}, err
	}
	active := p.ActivePlan(now)
	if active == nil {
		return operation{}, ErrNoActivePlan
	}
	current, err := e.catalog.Plan(ctx, active.PlanCode)
	if err != nil {
		return operation{}, err
	}
	plan, variant, err := e.resolveVariant(ctx, catalog.NormalizeCode(req.PlanCode), req.VariantDays)
	if err != nil {
		return operation{}, err
	}
	if plan.Level >= current.Level {
		return operation{}, fmt.Errorf("%w: %s (level %d) to %s (level %d)",
			ErrNotAnUpgrade, current.Code, current.Level, plan.Code, plan.Level)
	}
	if err := e.ensureNoPending(ctx, p.ID); err != nil {
		return operation{}, err
	}
	if err := e.checkLimits(ctx, p, plan, variant.IsFree(), now); err != nil {
		return operation{}, err
	}
	return operation{
		kind:       message.KindPurchase,
		plan:       &plan,
		variant:    variant,
		couponCode: req.CouponCode,
		orderID:    req.OrderID,
		admin:      req.Admin,
	}, nil
}
