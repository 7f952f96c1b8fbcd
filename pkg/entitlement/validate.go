package entitlement

import (
	"context"
	"errors"

	"github.com/jackira01/scort-web-site-sub002/pkg/errs"
)

// Check is the answer to a validate-before-purchase call.
type Check struct {
	Allowed bool     `json:"allowed"`
	Code    string   `json:"code,omitempty"`
	Message string   `json:"message,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// ValidatePurchase runs the plan purchase checks without changing anything.
// Zero VariantDays checks the cheapest variant.
func (e *Engine) ValidatePurchase(ctx context.Context, req PlanPurchase) (Check, error) {
	p, err := e.loadProfile(ctx, req.ProfileID, req.UserID)
	if err != nil {
		return checkFrom(err)
	}
	_, err = e.checkPurchase(ctx, p, req, e.now().UTC())
	return checkFrom(err)
}

// ValidateUpgrade runs the upgrade purchase checks without changing anything.
func (e *Engine) ValidateUpgrade(ctx context.Context, req UpgradePurchase) (Check, error) {
	p, err := e.loadProfile(ctx, req.ProfileID, req.UserID)
	if err != nil {
		return checkFrom(err)
	}
	_, err = e.checkUpgrade(ctx, p, req, e.now().UTC())
	return checkFrom(err)
}

// checkFrom turns a rule failure into a denied Check. Errors outside the
// domain taxonomy are returned as is.
func checkFrom(err error) (Check, error) {
	if err == nil {
		return Check{Allowed: true}, nil
	}
	de, ok := errs.As(err)
	if !ok {
		return Check{}, err
	}
	c := Check{Code: de.Code, Message: err.Error()}
	var missing *MissingDependenciesError
	if errors.As(err, &missing) {
		c.Missing = missing.Missing
	}
	return c, nil
}
