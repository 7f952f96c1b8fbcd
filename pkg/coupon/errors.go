package coupon

import "github.com/jackira01/scort-web-site-sub002/pkg/errs"

var (
	ErrCouponNotFound  = errs.NotFound("coupon_not_found", "coupon not found")
	ErrCouponExhausted = errs.BusinessRule("coupon_exhausted", "coupon has no uses left")
	ErrCouponRejected  = errs.BusinessRule("coupon_rejected", "coupon cannot be applied")
)

// Reason is the machine-readable cause of a failed validation or application.
type Reason string

const (
	ReasonNotFound        Reason = "not_found"
	ReasonInactive        Reason = "inactive"
	ReasonNotStarted      Reason = "not_started"
	ReasonExpired         Reason = "expired"
	ReasonExhausted       Reason = "exhausted"
	ReasonNoApplicability Reason = "no_applicability"
	ReasonNotApplicable   Reason = "not_applicable"
	ReasonFreePlan        Reason = "free_plan"
	ReasonPlanUnavailable Reason = "plan_unavailable"
)

var reasonMessages = map[Reason]string{
	ReasonNotFound:        "coupon not found",
	ReasonInactive:        "coupon is not active",
	ReasonNotStarted:      "coupon is not valid yet",
	ReasonExpired:         "coupon has expired",
	ReasonExhausted:       "coupon has no uses left",
	ReasonNoApplicability: "coupon does not declare applicable plans or upgrades",
	ReasonNotApplicable:   "coupon is not applicable to this purchase",
	ReasonFreePlan:        "coupon is not applicable to free plans",
	ReasonPlanUnavailable: "plan assigned by the coupon is not available",
}

// Message returns the human-readable text of r.
func (r Reason) Message() string {
	if m, ok := reasonMessages[r]; ok {
		return m
	}
	return string(r)
}
