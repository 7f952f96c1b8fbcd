package ranking

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/jackira01/scort-web-site-sub002/pkg/catalog"
	"github.com/jackira01/scort-web-site-sub002/pkg/profile"
)

// DefaultTopTierLevel is the worst plan level still ordered by activity
// rather than by creation time.
const DefaultTopTierLevel = 2

// Entry is the ranking view of one profile.
type Entry struct {
	ProfileID      string    `json:"profileId"`
	UserID         string    `json:"userId"`
	Name           string    `json:"name"`
	PlanCode       string    `json:"planCode"`
	PlanLevel      int       `json:"planLevel"`
	EffectiveLevel int       `json:"effectiveLevel"`
	DurationRank   int       `json:"durationRank"`
	Priority       int       `json:"priority"`
	PinTop         bool      `json:"pinTop"`
	Boosted        bool      `json:"boosted"`
	BoostStart     time.Time `json:"boostStart,omitzero"`
	// Recency is the last activity for top tiers and the creation time otherwise.
	Recency  time.Time        `json:"recency"`
	Upgrades []string         `json:"upgrades,omitempty"`
	Features catalog.Features `json:"features"`
}

// Projector derives listing eligibility and order from a catalog snapshot.
// It performs no I/O after construction.
type Projector struct {
	plans        map[string]catalog.PlanDefinition
	upgrades     map[string]catalog.UpgradeDefinition
	defaultPlan  catalog.PlanDefinition
	topTierLevel int
}

// Option configures a Projector.
type Option func(*Projector)

// WithTopTierLevel sets the worst level ordered by activity.
func WithTopTierLevel(level int) Option {
	return func(p *Projector) {
		if level >= catalog.BestLevel {
			p.topTierLevel = level
		}
	}
}

// NewProjector builds a projector over the given definitions. Profiles with
// no active plan, or a plan missing from plans, resolve to defaultPlan.
func NewProjector(plans []catalog.PlanDefinition, upgrades []catalog.UpgradeDefinition, defaultPlan catalog.PlanDefinition, opts ...Option) *Projector {
	p := &Projector{
		plans:        make(map[string]catalog.PlanDefinition, len(plans)),
		upgrades:     make(map[string]catalog.UpgradeDefinition, len(upgrades)),
		defaultPlan:  defaultPlan,
		topTierLevel: DefaultTopTierLevel,
	}
	for _, pl := range plans {
		p.plans[pl.Code] = pl
	}
	for _, u := range upgrades {
		p.upgrades[u.Code] = u
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load reads the catalog and builds a Projector.
func Load(ctx context.Context, cat catalog.Reader, defaultPlan catalog.PlanDefinition, opts ...Option) (*Projector, error) {
	plans, err := cat.Plans(ctx)
	if err != nil {
		return nil, err
	}
	upgrades, err := cat.Upgrades(ctx)
	if err != nil {
		return nil, err
	}
	return NewProjector(plans, upgrades, defaultPlan, opts...), nil
}

// resolvePlan returns the plan p holds at now and the duration rank of its
// variant. Default plan fallbacks carry a zero rank.
func (pr *Projector) resolvePlan(p *profile.Profile, now time.Time) (catalog.PlanDefinition, int) {
	active := p.ActivePlan(now)
	if active == nil {
		return pr.defaultPlan, 0
	}
	plan, ok := pr.plans[active.PlanCode]
	if !ok {
		return pr.defaultPlan, 0
	}
	variant, _ := plan.Variant(active.VariantDays)
	return plan, variant.DurationRank
}

// Project computes the ranking entry of p at now.
func (pr *Projector) Project(p *profile.Profile, now time.Time) Entry {
	plan, durationRank := pr.resolvePlan(p, now)

	var (
		effects    []catalog.Effect
		boostStart time.Time
		codes      []string
	)
	for _, g := range p.ActiveUpgrades(now) {
		codes = append(codes, g.Code)
		def, ok := pr.upgrades[g.Code]
		if !ok {
			continue
		}
		eff, err := def.ResolveEffect()
		if err != nil || eff == nil {
			continue
		}
		effects = append(effects, eff)
		if g.StartAt.After(boostStart) {
			boostStart = g.StartAt
		}
	}
	adj := catalog.Normalize(effects...)

	e := Entry{
		ProfileID:      p.ID,
		UserID:         p.UserID,
		Name:           p.Name,
		PlanCode:       plan.Code,
		PlanLevel:      plan.Level,
		EffectiveLevel: plan.Level,
		DurationRank:   durationRank,
		Upgrades:       codes,
		Features:       plan.Features,
		Recency:        p.CreatedAt,
	}
	if plan.Level <= pr.topTierLevel {
		e.Recency = p.LastActivityAt
	}
	if adj.Boosted {
		e.Boosted = true
		e.EffectiveLevel = adj.EffectiveLevel(plan.Level)
		e.Priority = adj.Priority
		e.PinTop = adj.PinTop
		e.BoostStart = boostStart
	}
	return e
}

// Eligible reports whether p may appear on surface at now: it must be
// visible, active, not deleted, and its resolved plan must enable surface.
func (pr *Projector) Eligible(p *profile.Profile, surface catalog.Surface, now time.Time) bool {
	if p.IsDeleted || !p.Visible || !p.IsActive {
		return false
	}
	plan, _ := pr.resolvePlan(p, now)
	return plan.ShowsIn(surface)
}

// Rank returns the eligible profiles of surface in listing order.
func (pr *Projector) Rank(profiles []profile.Profile, surface catalog.Surface, now time.Time) []Entry {
	entries := make([]Entry, 0, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		if pr.Eligible(p, surface, now) {
			entries = append(entries, pr.Project(p, now))
		}
	}
	slices.SortFunc(entries, Compare)
	return entries
}

// Compare orders two entries. Boosted entries come first, ordered by pin,
// effective level, priority, duration rank and latest boost. The rest follow
// by plan level, duration rank and recency. Profile id breaks every tie, so
// the order is total.
func Compare(a, b Entry) int {
	if a.Boosted != b.Boosted {
		if a.Boosted {
			return -1
		}
		return 1
	}

	var c int
	if a.Boosted {
		c = cmp.Or(
			compareBool(a.PinTop, b.PinTop),
			cmp.Compare(a.EffectiveLevel, b.EffectiveLevel),
			cmp.Compare(b.Priority, a.Priority),
			cmp.Compare(b.DurationRank, a.DurationRank),
			b.BoostStart.Compare(a.BoostStart),
		)
	} else {
		c = cmp.Or(
			cmp.Compare(a.PlanLevel, b.PlanLevel),
			cmp.Compare(b.DurationRank, a.DurationRank),
			b.Recency.Compare(a.Recency),
		)
	}
	if c != 0 {
		return c
	}
	return strings.Compare(a.ProfileID, b.ProfileID)
}

// compareBool puts true first.
func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	default:
		return 1
	}
}
