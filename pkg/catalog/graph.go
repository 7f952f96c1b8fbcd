package catalog

import (
	"fmt"
	"slices"
	"strings"
)

// DependencyGraph is an adjacency list: upgrade code -> codes it requires.
type DependencyGraph map[string][]string

// BuildGraph builds the dependency graph of the given upgrades.
func BuildGraph(upgrades []UpgradeDefinition) DependencyGraph {
	g := make(DependencyGraph, len(upgrades))
	for _, u := range upgrades {
		g[u.Code] = slices.Clone(u.Requires)
	}
	return g
}

// DetectCycle runs a depth-first search over g and returns the first cycle found
// as a path whose first and last element are the same code, or nil if g is acyclic.
// Nodes are visited in sorted order so the reported cycle is deterministic.
func DetectCycle(g DependencyGraph) []string {
	const (
		unvisited = iota
		inStack
		done
	)

	state := make(map[string]int, len(g))
	var stack []string
	var cycle []string

	var visit func(code string) bool
	visit = func(code string) bool {
		switch state[code] {
		case inStack:
			start := slices.Index(stack, code)
			cycle = append(slices.Clone(stack[start:]), code)
			return true
		case done:
			return false
		}

		state[code] = inStack
		stack = append(stack, code)
		deps := slices.Clone(g[code])
		slices.Sort(deps)
		for _, dep := range deps {
			if visit(dep) {
				return true
			}
		}
		stack = stack[:len(stack)-1]
		state[code] = done
		return false
	}

	nodes := make([]string, 0, len(g))
	for code := range g {
		nodes = append(nodes, code)
	}
	slices.Sort(nodes)

	for _, code := range nodes {
		if visit(code) {
			return cycle
		}
	}
	return nil
}

// ValidateDependencies checks that candidate can be written next to existing
// upgrades: no self reference, every required code exists and the resulting graph is acyclic.
// An existing upgrade with the candidate's code is replaced in the check.
func ValidateDependencies(existing []UpgradeDefinition, candidate UpgradeDefinition) error {
	if slices.Contains(candidate.Requires, candidate.Code) {
		return fmt.Errorf("%w: %s", ErrSelfDependency, candidate.Code)
	}

	g := BuildGraph(existing)
	g[candidate.Code] = slices.Clone(candidate.Requires)

	for _, dep := range candidate.Requires {
		if _, ok := g[dep]; !ok {
			return fmt.Errorf("%w: %s requires %s", ErrUnknownDependency, candidate.Code, dep)
		}
	}

	if cycle := DetectCycle(g); cycle != nil {
		return fmt.Errorf("%w: %s", ErrCircularDependency, strings.Join(cycle, " -> "))
	}
	return nil
}
