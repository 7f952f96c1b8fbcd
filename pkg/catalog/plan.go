package catalog

import (
	"slices"
	"time"
)

// Level bounds. Lower level means a better tier.
const (
	BestLevel  = 1
	WorstLevel = 5
)

// Variant is a purchasable duration of a plan.
type Variant struct {
	Days         int   `bson:"days" json:"days" yaml:"days" validate:"gt=0"`
	Price        int64 `bson:"price" json:"price" yaml:"price" validate:"gte=0"`
	DurationRank int   `bson:"duration_rank" json:"durationRank" yaml:"duration_rank" validate:"gte=0"`
}

// IsFree reports whether the variant costs nothing.
func (v Variant) IsFree() bool {
	return v.Price <= 0
}

// Features toggles the listing surfaces a plan appears on.
type Features struct {
	ShowInHome      bool `bson:"show_in_home" json:"showInHome" yaml:"show_in_home"`
	ShowInFilters   bool `bson:"show_in_filters" json:"showInFilters" yaml:"show_in_filters"`
	ShowInSponsored bool `bson:"show_in_sponsored" json:"showInSponsored" yaml:"show_in_sponsored"`
}

// ContentLimits caps media a profile may publish under the plan.
type ContentLimits struct {
	Photos  int `bson:"photos" json:"photos" yaml:"photos" validate:"gte=0"`
	Videos  int `bson:"videos" json:"videos" yaml:"videos" validate:"gte=0"`
	Audios  int `bson:"audios" json:"audios" yaml:"audios" validate:"gte=0"`
	Stories int `bson:"stories" json:"stories" yaml:"stories" validate:"gte=0"`
}

// PlanDefinition is a catalog row describing a plan tier.
type PlanDefinition struct {
	ID               string        `bson:"_id" json:"id" yaml:"id"`
	Code             string        `bson:"code" json:"code" yaml:"code" validate:"required,catalogcode"`
	Name             string        `bson:"name" json:"name" yaml:"name" validate:"required"`
	Level            int           `bson:"level" json:"level" yaml:"level" validate:"min=1,max=5"`
	Variants         []Variant     `bson:"variants" json:"variants" yaml:"variants" validate:"min=1,dive"`
	Features         Features      `bson:"features" json:"features" yaml:"features"`
	ContentLimits    ContentLimits `bson:"content_limits" json:"contentLimits" yaml:"content_limits"`
	IncludedUpgrades []string      `bson:"included_upgrades" json:"includedUpgrades" yaml:"included_upgrades" validate:"dive,catalogcode"`
	// MaxVisiblePerUser caps how many visible profiles of one user may hold this plan. Zero disables the cap.
	MaxVisiblePerUser int       `bson:"max_visible_per_user" json:"maxVisiblePerUser" yaml:"max_visible_per_user" validate:"gte=0"`
	Active            bool      `bson:"active" json:"active" yaml:"active"`
	CreatedAt         time.Time `bson:"created_at" json:"createdAt" yaml:"-"`
	UpdatedAt         time.Time `bson:"updated_at" json:"updatedAt" yaml:"-"`
}

// Variant returns the variant with the given day count.
func (p PlanDefinition) Variant(days int) (Variant, bool) {
	for _, v := range p.Variants {
		if v.Days == days {
			return v, true
		}
	}
	return Variant{}, false
}

// CheapestVariant returns the lowest priced variant, preferring the shorter one on ties.
func (p PlanDefinition) CheapestVariant() (Variant, bool) {
	if len(p.Variants) == 0 {
		return Variant{}, false
	}
	best := p.Variants[0]
	for _, v := range p.Variants[1:] {
		if v.Price < best.Price || (v.Price == best.Price && v.Days < best.Days) {
			best = v
		}
	}
	return best, true
}

// FreeVariant returns the first zero-priced variant.
func (p PlanDefinition) FreeVariant() (Variant, bool) {
	for _, v := range p.Variants {
		if v.IsFree() {
			return v, true
		}
	}
	return Variant{}, false
}

// IsFree reports whether every variant of the plan is free.
func (p PlanDefinition) IsFree() bool {
	if len(p.Variants) == 0 {
		return false
	}
	for _, v := range p.Variants {
		if !v.IsFree() {
			return false
		}
	}
	return true
}

// Includes reports whether the plan auto-grants the given upgrade.
func (p PlanDefinition) Includes(upgradeCode string) bool {
	return slices.Contains(p.IncludedUpgrades, upgradeCode)
}

// ShowsIn reports whether the plan's features enable a listing surface.
func (p PlanDefinition) ShowsIn(s Surface) bool {
	switch s {
	case SurfaceHome:
		return p.Features.ShowInHome
	case SurfaceFilters:
		return p.Features.ShowInFilters
	case SurfaceSponsored:
		return p.Features.ShowInSponsored
	default:
		return false
	}
}

// Surface is a public listing where profiles can appear.
type Surface string

const (
	SurfaceHome      Surface = "home"
	SurfaceFilters   Surface = "filters"
	SurfaceSponsored Surface = "sponsored"
)

// Valid reports whether s is a known surface.
func (s Surface) Valid() bool {
	switch s {
	case SurfaceHome, SurfaceFilters, SurfaceSponsored:
		return true
	}
	return false
}
