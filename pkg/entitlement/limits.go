package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/jackira01/scort-web-site-sub002/pkg/catalog"
	"github.com/jackira01/scort-web-site-sub002/pkg/profile"
	"github.com/jackira01/scort-web-site-sub002/pkg/settings"
)

// checkLimits enforces the per-user profile caps before p takes plan. free
// tells whether the chosen variant costs nothing. p itself is never counted.
func (e *Engine) checkLimits(ctx context.Context, p *profile.Profile, plan catalog.PlanDefinition, free bool, now time.Time) error {
	acct, err := e.users.Account(ctx, p.UserID)
	if err != nil {
		return err
	}
	if acct.Type == AccountAgency && acct.ConversionStatus != ConversionApproved {
		return ErrAgencyNotApproved
	}

	c := e.caps(ctx, acct.Type)
	freeCodes, err := e.freePlanCodes(ctx)
	if err != nil {
		return err
	}

	base := profile.Query{UserID: p.UserID, ExcludeID: p.ID}

	if free {
		if len(freeCodes) > 0 {
			q := base
			q.PlanCodes = freeCodes
			q.PlanActiveAt = now
			if err := e.checkCap(ctx, q, c.free, ErrFreeLimit); err != nil {
				return err
			}
		}
	} else {
		q := base
		q.NotPlanCodes = freeCodes
		q.PlanActiveAt = now
		if err := e.checkCap(ctx, q, c.paid, ErrPaidLimit); err != nil {
			return err
		}
	}

	q := base
	q.VisibleOnly = true
	if err := e.checkCap(ctx, q, c.visible, ErrVisibleLimit); err != nil {
		return err
	}

	if plan.MaxVisiblePerUser > 0 {
		q := base
		q.VisibleOnly = true
		q.PlanCodes = []string{plan.Code}
		q.PlanActiveAt = now
		if err := e.checkCap(ctx, q, plan.MaxVisiblePerUser, ErrPlanLimit); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) checkCap(ctx context.Context, q profile.Query, limit int, sentinel error) error {
	if limit < 0 {
		return nil
	}
	n, err := e.profiles.Count(ctx, q)
	if err != nil {
		return err
	}
	if n >= limit {
		return fmt.Errorf("%w: %d of %d", sentinel, n, limit)
	}
	return nil
}

func (e *Engine) caps(ctx context.Context, t AccountType) caps {
	if t != AccountAgency {
		t = AccountCommon
	}
	def := e.cfg.capsFor(t)
	return caps{
		free:    e.settings.Int(ctx, settings.LimitKey(string(t), "free"), def.free),
		paid:    e.settings.Int(ctx, settings.LimitKey(string(t), "paid"), def.paid),
		visible: e.settings.Int(ctx, settings.LimitKey(string(t), "visible"), def.visible),
	}
}

// freePlanCodes lists plans whose every variant is free.
func (e *Engine) freePlanCodes(ctx context.Context) ([]string, error) {
	plans, err := e.catalog.Plans(ctx)
	if err != nil {
		return nil, err
	}
	var codes []string
	for _, p := range plans {
		if p.IsFree() {
			codes = append(codes, p.Code)
		}
	}
	return codes, nil
}
