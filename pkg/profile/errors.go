package profile

import "github.com/jackira01/scort-web-site-sub002/pkg/errs"

var (
	ErrProfileNotFound      = errs.NotFound("profile_not_found", "profile not found")
	ErrNoPlan               = errs.BusinessRule("no_plan", "profile has no plan assignment")
	ErrUpgradeAlreadyActive = errs.BusinessRule("upgrade_already_active", "upgrade already active")
	ErrUnknownStacking      = errs.Validation("unknown_stacking_policy", "unknown stacking policy")
)
