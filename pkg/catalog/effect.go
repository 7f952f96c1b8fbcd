package catalog

import "fmt"

// EffectKind names the persisted variant of an upgrade's ranking effect.
type EffectKind string

const (
	EffectLevelDelta    EffectKind = "level_delta"
	EffectSetLevelTo    EffectKind = "set_level_to"
	EffectPriorityBonus EffectKind = "priority_bonus"
	EffectPositionRule  EffectKind = "position_rule"
)

// Position values for PositionRule.
const (
	PositionTop = "top"
)

// EffectSpec is the storage form of an Effect. Only the fields relevant to Kind are read.
type EffectSpec struct {
	Kind  EffectKind `bson:"kind" json:"kind" yaml:"kind" validate:"required,oneof=level_delta set_level_to priority_bonus position_rule"`
	Value int        `bson:"value,omitempty" json:"value,omitempty" yaml:"value,omitempty"`
	Rule  string     `bson:"rule,omitempty" json:"rule,omitempty" yaml:"rule,omitempty"`
}

// Effect is a ranking effect granted by an active upgrade.
// The set of implementations is closed: LevelDelta, SetLevelTo, PriorityBonus, PositionRule.
type Effect interface {
	apply(*Adjustment)
	Spec() EffectSpec
}

// LevelDelta shifts the effective plan level; negative values improve ranking.
type LevelDelta struct{ Delta int }

// SetLevelTo overrides the effective plan level.
type SetLevelTo struct{ Level int }

// PriorityBonus orders boosted profiles sharing an effective level; higher first.
type PriorityBonus struct{ Bonus int }

// PositionRule pins the profile to a fixed position among boosted profiles.
type PositionRule struct{ Position string }

func (e LevelDelta) apply(a *Adjustment) {
	a.LevelDelta += e.Delta
	a.Boosted = true
}

func (e SetLevelTo) apply(a *Adjustment) {
	// best override wins when several upgrades set a level
	if a.SetLevel == 0 || e.Level < a.SetLevel {
		a.SetLevel = e.Level
	}
	a.Boosted = true
}

func (e PriorityBonus) apply(a *Adjustment) {
	a.Priority += e.Bonus
	a.Boosted = true
}

func (e PositionRule) apply(a *Adjustment) {
	if e.Position == PositionTop {
		a.PinTop = true
	}
	a.Boosted = true
}

// Spec returns the stored form of the effect.
func (e LevelDelta) Spec() EffectSpec {
	return EffectSpec{Kind: EffectLevelDelta, Value: e.Delta}
}

// Spec returns the stored form of the effect.
func (e SetLevelTo) Spec() EffectSpec {
	return EffectSpec{Kind: EffectSetLevelTo, Value: e.Level}
}

// Spec returns the stored form of the effect.
func (e PriorityBonus) Spec() EffectSpec {
	return EffectSpec{Kind: EffectPriorityBonus, Value: e.Bonus}
}

// Spec returns the stored form of the effect.
func (e PositionRule) Spec() EffectSpec {
	return EffectSpec{Kind: EffectPositionRule, Rule: e.Position}
}

// Resolve converts the stored form into its Effect variant.
func (s EffectSpec) Resolve() (Effect, error) {
	switch s.Kind {
	case EffectLevelDelta:
		return LevelDelta{Delta: s.Value}, nil
	case EffectSetLevelTo:
		if s.Value < BestLevel || s.Value > WorstLevel {
			return nil, fmt.Errorf("%w: set_level_to %d out of range", ErrInvalidEffect, s.Value)
		}
		return SetLevelTo{Level: s.Value}, nil
	case EffectPriorityBonus:
		return PriorityBonus{Bonus: s.Value}, nil
	case EffectPositionRule:
		if s.Rule != PositionTop {
			return nil, fmt.Errorf("%w: unknown position rule %q", ErrInvalidEffect, s.Rule)
		}
		return PositionRule{Position: s.Rule}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidEffect, s.Kind)
	}
}

// Adjustment is the normalized ranking change produced by a set of active effects.
type Adjustment struct {
	LevelDelta int
	SetLevel   int // zero when no override
	Priority   int
	PinTop     bool
	Boosted    bool
}

// Normalize folds effects into a single Adjustment. Nil effects are ignored.
func Normalize(effects ...Effect) Adjustment {
	var a Adjustment
	for _, e := range effects {
		if e != nil {
			e.apply(&a)
		}
	}
	return a
}

// EffectiveLevel applies the adjustment to a plan level and clamps the result to the level bounds.
func (a Adjustment) EffectiveLevel(planLevel int) int {
	level := planLevel
	if a.SetLevel != 0 {
		level = a.SetLevel
	}
	level += a.LevelDelta
	return max(BestLevel, min(WorstLevel, level))
}
