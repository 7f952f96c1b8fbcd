package entitlement

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jackira01/scort-web-site-sub002/pkg/catalog"
	"github.com/jackira01/scort-web-site-sub002/pkg/message"
	"github.com/jackira01/scort-web-site-sub002/pkg/profile"
)

// UpgradePurchase asks for an upgrade grant on a profile.
type UpgradePurchase struct {
	ProfileID   string
	UserID      string
	UpgradeCode string
	CouponCode  string
	OrderID     string
	Admin       bool
}

// PurchaseUpgrade buys an upgrade for a profile holding an active plan.
func (e *Engine) PurchaseUpgrade(ctx context.Context, req UpgradePurchase) (*Outcome, error) {
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

	op, err := e.checkUpgrade(ctx, p, req, now)
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, p, op, now)
}

func (e *Engine) checkUpgrade(ctx context.Context, p *profile.Profile, req UpgradePurchase, now time.Time) (operation, error) {
	code := catalog.NormalizeCode(req.UpgradeCode)
	if code == "" {
		return operation{}, ErrUpgradeCodeRequired
	}
	if err := e.checkOrder(p, req.OrderID); err != nil {
		return operation{}, err
	}
	active := p.ActivePlan(now)
	if active == nil {
		return operation{}, ErrUpgradeWithoutPlan
	}

	def, err := e.catalog.Upgrade(ctx, code)
	if err != nil {
		return operation{}, err
	}
	if !def.Active {
		return operation{}, fmt.Errorf("%w: %s", catalog.ErrUpgradeInactive, def.Code)
	}

	plan, err := e.catalog.Plan(ctx, active.PlanCode)
	if err != nil {
		return operation{}, err
	}
	if missing := missingDependencies(def, p.ActiveUpgradeCodes(now), plan); len(missing) > 0 {
		return operation{}, &MissingDependenciesError{Upgrade: def.Code, Missing: missing}
	}
	if def.StackingPolicy == catalog.StackReject && p.HasActiveUpgrade(def.Code, now) {
		return operation{}, fmt.Errorf("%w: %s", profile.ErrUpgradeAlreadyActive, def.Code)
	}
	if err := e.ensureNoPending(ctx, p.ID); err != nil {
		return operation{}, err
	}

	return operation{
		kind:       message.KindUpgrade,
		upgrade:    &def,
		couponCode: req.CouponCode,
		orderID:    req.OrderID,
		admin:      req.Admin,
	}, nil
}

// missingDependencies returns the required codes that are neither active
// grants nor included in the active plan.
func missingDependencies(def catalog.UpgradeDefinition, active []string, plan catalog.PlanDefinition) []string {
	var missing []string
	for _, dep := range def.Requires {
		if slices.Contains(active, dep) || plan.Includes(dep) {
			continue
		}
		missing = append(missing, dep)
	}
	return missing
}
