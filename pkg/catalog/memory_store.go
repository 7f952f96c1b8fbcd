package catalog

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

type memoryStore struct {
	mu       sync.RWMutex
	plans    map[string]PlanDefinition // by ID
	upgrades map[string]UpgradeDefinition
}

// NewMemoryStore returns an in-memory Store seeded with copies of the given definitions.
func NewMemoryStore(plans []PlanDefinition, upgrades []UpgradeDefinition) Store {
	s := &memoryStore{
		plans:    make(map[string]PlanDefinition, len(plans)),
		upgrades: make(map[string]UpgradeDefinition, len(upgrades)),
	}
	for _, p := range plans {
		s.plans[p.ID] = clonePlan(p)
	}
	for _, u := range upgrades {
		s.upgrades[u.ID] = cloneUpgrade(u)
	}
	return s
}

func (s *memoryStore) ListPlans(_ context.Context) ([]PlanDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PlanDefinition, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, clonePlan(p))
	}
	return out, nil
}

func (s *memoryStore) GetPlan(_ context.Context, code string) (*PlanDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.plans {
		if p.Code == code {
			c := clonePlan(p)
			return &c, nil
		}
	}
	return nil, ErrPlanNotFound
}

func (s *memoryStore) SavePlan(_ context.Context, p *PlanDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.plans {
		if other.Code == p.Code && id != p.ID {
			return fmt.Errorf("%w: plan %s", ErrDuplicateCode, p.Code)
		}
	}
	s.plans[p.ID] = clonePlan(*p)
	return nil
}

func (s *memoryStore) ListUpgrades(_ context.Context) ([]UpgradeDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]UpgradeDefinition, 0, len(s.upgrades))
	for _, u := range s.upgrades {
		out = append(out, cloneUpgrade(u))
	}
	return out, nil
}

func (s *memoryStore) GetUpgrade(_ context.Context, code string) (*UpgradeDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.upgrades {
		if u.Code == code {
			c := cloneUpgrade(u)
			return &c, nil
		}
	}
	return nil, ErrUpgradeNotFound
}

func (s *memoryStore) SaveUpgrade(_ context.Context, u *UpgradeDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.upgrades {
		if other.Code == u.Code && id != u.ID {
			return fmt.Errorf("%w: upgrade %s", ErrDuplicateCode, u.Code)
		}
	}
	s.upgrades[u.ID] = cloneUpgrade(*u)
	return nil
}

func clonePlan(p PlanDefinition) PlanDefinition {
	p.Variants = slices.Clone(p.Variants)
	p.IncludedUpgrades = slices.Clone(p.IncludedUpgrades)
	return p
}

func cloneUpgrade(u UpgradeDefinition) UpgradeDefinition {
	u.Requires = slices.Clone(u.Requires)
	if u.Effect != nil {
		e := *u.Effect
		u.Effect = &e
	}
	return u
}
