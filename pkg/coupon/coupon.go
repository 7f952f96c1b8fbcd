package coupon

import (
	"slices"
	"time"
)

// Type selects how a coupon discounts a price.
type Type string

const (
	TypePercentage     Type = "percentage"
	TypeFixedAmount    Type = "fixed_amount"
	TypePlanAssignment Type = "plan_assignment"
)

// Unlimited is the MaxUses value of a coupon without a usage cap.
const Unlimited = -1

// Coupon is a discount code.
type Coupon struct {
	ID   string `bson:"_id" json:"id"`
	Code string `bson:"code" json:"code"`
	Name string `bson:"name" json:"name"`
	Type Type   `bson:"type" json:"type"`
	// Value is a percentage for TypePercentage and an amount for TypeFixedAmount.
	Value float64 `bson:"value" json:"value"`
	// PlanCode and VariantDays swap the purchased plan, or name the plan a
	// TypePlanAssignment coupon grants.
	PlanCode        string    `bson:"plan_code,omitempty" json:"planCode,omitempty"`
	VariantDays     int       `bson:"variant_days,omitempty" json:"variantDays,omitempty"`
	ValidFrom       time.Time `bson:"valid_from" json:"validFrom"`
	ValidUntil      time.Time `bson:"valid_until" json:"validUntil"`
	MaxUses         int       `bson:"max_uses" json:"maxUses"`
	CurrentUses     int       `bson:"current_uses" json:"currentUses"`
	ApplicablePlans []string  `bson:"applicable_plans" json:"applicablePlans"`
	ValidUpgrades   []string  `bson:"valid_upgrades" json:"validUpgrades"`
	IsActive        bool      `bson:"is_active" json:"isActive"`
	CreatedAt       time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updatedAt"`
}

// HasUsesLeft reports whether the coupon can be redeemed again.
func (c *Coupon) HasUsesLeft() bool {
	return c.MaxUses == Unlimited || c.CurrentUses < c.MaxUses
}

// Target is what a coupon is being checked against. Empty fields are not checked.
type Target struct {
	PlanCode    string
	UpgradeCode string
}

// check runs the validation chain and returns the first failing reason.
func (c *Coupon) check(now time.Time, t Target) (Reason, bool) {
	switch {
	case !c.IsActive:
		return ReasonInactive, false
	case !c.ValidFrom.IsZero() && now.Before(c.ValidFrom):
		return ReasonNotStarted, false
	case !c.ValidUntil.IsZero() && now.After(c.ValidUntil):
		return ReasonExpired, false
	case !c.HasUsesLeft():
		return ReasonExhausted, false
	}
	return c.applicable(t)
}

func (c *Coupon) applicable(t Target) (Reason, bool) {
	if c.Type == TypePlanAssignment {
		if len(c.ApplicablePlans) > 0 && t.PlanCode != "" && !slices.Contains(c.ApplicablePlans, t.PlanCode) {
			return ReasonNotApplicable, false
		}
		return "", true
	}

	if len(c.ApplicablePlans) == 0 && len(c.ValidUpgrades) == 0 {
		return ReasonNoApplicability, false
	}
	if t.PlanCode != "" && !slices.Contains(c.ApplicablePlans, t.PlanCode) {
		return ReasonNotApplicable, false
	}
	if t.UpgradeCode != "" && !slices.Contains(c.ValidUpgrades, t.UpgradeCode) {
		return ReasonNotApplicable, false
	}
	return "", true
}

// Snapshot is the coupon state frozen on an invoice at generation time.
type Snapshot struct {
	Code           string  `bson:"code" json:"code"`
	Type           Type    `bson:"type" json:"type"`
	Value          float64 `bson:"value" json:"value"`
	OriginalAmount int64   `bson:"original_amount" json:"originalAmount"`
	DiscountAmount int64   `bson:"discount_amount" json:"discountAmount"`
	FinalAmount    int64   `bson:"final_amount" json:"finalAmount"`
	PlanCode       string  `bson:"plan_code,omitempty" json:"planCode,omitempty"`
	VariantDays    int     `bson:"variant_days,omitempty" json:"variantDays,omitempty"`
}
