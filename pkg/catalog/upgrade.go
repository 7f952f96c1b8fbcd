package catalog

import "time"

// StackingPolicy resolves a repeat purchase of an upgrade that is still active.
type StackingPolicy string

const (
	StackExtend  StackingPolicy = "extend"  // lengthen the current grant
	StackReplace StackingPolicy = "replace" // restart the window from now
	StackReject  StackingPolicy = "reject"  // refuse the purchase
)

// UpgradeDefinition is a catalog row describing a time-boxed add-on.
type UpgradeDefinition struct {
	ID             string         `bson:"_id" json:"id" yaml:"id"`
	Code           string         `bson:"code" json:"code" yaml:"code" validate:"required,catalogcode"`
	Name           string         `bson:"name" json:"name" yaml:"name" validate:"required"`
	DurationHours  int            `bson:"duration_hours" json:"durationHours" yaml:"duration_hours" validate:"gt=0"`
	Price          int64          `bson:"price" json:"price" yaml:"price" validate:"gte=0"`
	Requires       []string       `bson:"requires" json:"requires" yaml:"requires" validate:"dive,catalogcode"`
	StackingPolicy StackingPolicy `bson:"stacking_policy" json:"stackingPolicy" yaml:"stacking_policy" validate:"required,oneof=extend replace reject"`
	Effect         *EffectSpec    `bson:"effect,omitempty" json:"effect,omitempty" yaml:"effect,omitempty" validate:"omitempty"`
	Active         bool           `bson:"active" json:"active" yaml:"active"`
	CreatedAt      time.Time      `bson:"created_at" json:"createdAt" yaml:"-"`
	UpdatedAt      time.Time      `bson:"updated_at" json:"updatedAt" yaml:"-"`
}

// Duration returns the length of one grant.
func (u UpgradeDefinition) Duration() time.Duration {
	return time.Duration(u.DurationHours) * time.Hour
}

// ResolveEffect returns the upgrade's Effect, or nil when it has none.
func (u UpgradeDefinition) ResolveEffect() (Effect, error) {
	if u.Effect == nil {
		return nil, nil
	}
	return u.Effect.Resolve()
}
