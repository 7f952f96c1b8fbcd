// Package catalog holds the plan and upgrade reference data of the marketplace.
//
// Plans are tiers with a level from 1 (best) to 5, one or more purchasable
// variants and the listing surfaces they unlock. Upgrades are time-boxed add-ons
// with a ranking Effect, a stacking policy for repeat purchases and a list of
// upgrades they require. The requires graph is checked for self references,
// unknown codes and cycles before any write:
//
//	svc := catalog.NewService(store)
//	_, err := svc.SaveUpgrade(ctx, catalog.UpgradeDefinition{
//		Code:           "IMPULSO",
//		Requires:       []string{"DESTACADO"},
//		StackingPolicy: catalog.StackReplace,
//		...
//	})
//	if errors.Is(err, catalog.ErrCircularDependency) { ... }
//
// Stored effects are resolved into the closed Effect variants and folded into
// an Adjustment with Normalize; ranking reads only the Adjustment.
//
// Seeds in YAML can be imported with Service.Import. DefaultSeed returns the
// bundled catalog.
package catalog
