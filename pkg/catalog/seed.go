package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Seed is a catalog snapshot loaded from YAML.
//
//	upgrades:
//	  - code: DESTACADO
//	    name: Destacado
//	    duration_hours: 24
//	    price: 15000
//	    stacking_policy: extend
//	    effect: {kind: level_delta, value: -1}
//	plans:
//	  - code: AMATISTA
//	    name: Amatista
//	    level: 5
//	    variants: [{days: 30, price: 0}]
type Seed struct {
	Plans    []PlanDefinition    `yaml:"plans"`
	Upgrades []UpgradeDefinition `yaml:"upgrades"`
}

// ImportReport summarizes an Import run.
type ImportReport struct {
	Plans    int
	Upgrades int
}

// LoadSeed decodes a YAML seed.
func LoadSeed(r io.Reader) (Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return Seed{}, errors.Join(ErrInvalidDefinition, err)
	}
	return seed, nil
}

//go:embed seed/default.yaml
var defaultSeed []byte

// DefaultSeed returns the bundled marketplace catalog.
func DefaultSeed() (Seed, error) {
	return LoadSeed(bytes.NewReader(defaultSeed))
}

// LoadSeedFile decodes the YAML seed at path.
func LoadSeedFile(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, fmt.Errorf("open seed %s: %w", path, err)
	}
	defer f.Close()
	return LoadSeed(f)
}

// Import upserts every definition of seed by code. Upgrades are written in
// dependency order so each write passes the cycle check; plans follow so their
// included upgrades exist.
func (s *Service) Import(ctx context.Context, seed Seed) (ImportReport, error) {
	var report ImportReport

	ordered, err := dependencyOrder(seed.Upgrades)
	if err != nil {
		return report, err
	}

	for _, u := range ordered {
		u.Code = NormalizeCode(u.Code)
		if existing, err := s.store.GetUpgrade(ctx, u.Code); err == nil {
			u.ID = existing.ID
			u.CreatedAt = existing.CreatedAt
		} else if !errors.Is(err, ErrUpgradeNotFound) {
			return report, err
		}
		if _, err := s.SaveUpgrade(ctx, u); err != nil {
			return report, fmt.Errorf("import upgrade %s: %w", u.Code, err)
		}
		report.Upgrades++
	}

	for _, p := range seed.Plans {
		p.Code = NormalizeCode(p.Code)
		if existing, err := s.store.GetPlan(ctx, p.Code); err == nil {
			p.ID = existing.ID
			p.CreatedAt = existing.CreatedAt
		} else if !errors.Is(err, ErrPlanNotFound) {
			return report, err
		}
		if _, err := s.SavePlan(ctx, p); err != nil {
			return report, fmt.Errorf("import plan %s: %w", p.Code, err)
		}
		report.Plans++
	}

	return report, nil
}

// dependencyOrder sorts upgrades so that required codes come first.
// Requirements outside the seed are left for the store-level check.
func dependencyOrder(upgrades []UpgradeDefinition) ([]UpgradeDefinition, error) {
	byCode := make(map[string]UpgradeDefinition, len(upgrades))
	for _, u := range upgrades {
		code := NormalizeCode(u.Code)
		if _, dup := byCode[code]; dup {
			return nil, fmt.Errorf("%w: upgrade %s listed twice", ErrDuplicateCode, code)
		}
		byCode[code] = u
	}

	g := make(DependencyGraph, len(byCode))
	for code, u := range byCode {
		for _, dep := range u.Requires {
			g[code] = append(g[code], NormalizeCode(dep))
		}
		if _, ok := g[code]; !ok {
			g[code] = nil
		}
	}
	if cycle := DetectCycle(g); cycle != nil {
		return nil, fmt.Errorf("%w: %s", ErrCircularDependency, strings.Join(cycle, " -> "))
	}

	codes := make([]string, 0, len(byCode))
	for code := range byCode {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	visited := make(map[string]bool, len(codes))
	ordered := make([]UpgradeDefinition, 0, len(codes))
	var visit func(code string)
	visit = func(code string) {
		if visited[code] {
			return
		}
		visited[code] = true
		for _, dep := range g[code] {
			if _, inSeed := byCode[dep]; inSeed {
				visit(dep)
			}
		}
		ordered = append(ordered, byCode[code])
	}
	for _, code := range codes {
		visit(code)
	}
	return ordered, nil
}
