package catalog

import "github.com/jackira01/scort-web-site-sub002/pkg/errs"

var (
	ErrPlanNotFound    = errs.NotFound("plan_not_found", "plan not found")
	ErrUpgradeNotFound = errs.NotFound("upgrade_not_found", "upgrade not found")
	ErrVariantNotFound = errs.NotFound("variant_not_found", "plan variant not found")
	ErrUpgradeInactive = errs.BusinessRule("upgrade_inactive", "upgrade is not active")
	ErrPlanInactive    = errs.BusinessRule("plan_inactive", "plan is not active")

	ErrInvalidDefinition = errs.Validation("invalid_definition", "invalid catalog definition")
	ErrInvalidEffect     = errs.Validation("invalid_effect", "invalid upgrade effect")

	ErrDuplicateCode        = errs.Integrity("duplicate_code", "catalog code already exists")
	ErrSelfDependency       = errs.Integrity("self_dependency", "upgrade cannot require itself")
	ErrCircularDependency   = errs.Integrity("circular_dependency", "circular upgrade dependency")
	ErrUnknownDependency    = errs.Integrity("unknown_dependency", "upgrade requires an unknown upgrade")
	ErrUnknownIncludedGrant = errs.Integrity("unknown_included_upgrade", "plan includes an unknown upgrade")
)
