package entitlement

import (
	"fmt"
	"strings"

	"github.com/jackira01/scort-web-site-sub002/pkg/errs"
)

var (
	ErrDuplicateOrder      = errs.BusinessRule("duplicate_order", "order was already processed")
	ErrActivePlan          = errs.BusinessRule("active_plan", "profile already has an active plan")
	ErrNoActivePlan        = errs.BusinessRule("no_active_plan", "profile has no active plan")
	ErrUpgradeWithoutPlan  = errs.BusinessRule("no_active_plan", "cannot buy upgrades without an active plan")
	ErrNotAnUpgrade        = errs.BusinessRule("not_an_upgrade", "target plan is not better than the current plan")
	ErrPendingInvoice      = errs.BusinessRule("pending_invoice", "profile has a pending invoice")
	ErrMissingDependencies = errs.BusinessRule("missing_dependencies", "upgrade requires other active upgrades")
	ErrFreeLimit           = errs.BusinessRule("free_limit", "free profile limit reached")
	ErrPaidLimit           = errs.BusinessRule("paid_limit", "paid profile limit reached")
	ErrVisibleLimit        = errs.BusinessRule("visible_limit", "visible profile limit reached")
	ErrPlanLimit           = errs.BusinessRule("plan_limit", "visible profile limit for this plan reached")
	ErrAgencyNotApproved   = errs.BusinessRule("agency_not_approved", "agency account conversion is not approved")
	ErrOperationInProgress = errs.BusinessRule("operation_in_progress", "another operation on this profile or order is in progress")
	ErrDefaultPlanNotFree  = errs.Integrity("default_plan_not_free", "default plan has no free variant")
	ErrUserNotFound        = errs.NotFound("user_not_found", "user not found")
	ErrProfileIDRequired   = errs.Validation("profile_id_required", "profile id is required")
	ErrInvalidVariantDays  = errs.Validation("invalid_variant_days", "variant days must not be negative")
	ErrUpgradeCodeRequired = errs.Validation("upgrade_code_required", "upgrade code is required")
	ErrPlanCodeRequired    = errs.Validation("plan_code_required", "plan code is required")
	ErrNotOwner            = errs.Forbidden("not_owner", "profile belongs to another user")
)

// MissingDependenciesError lists the required upgrades a profile lacks.
type MissingDependenciesError struct {
	Upgrade string
	Missing []string
}

func (e *MissingDependenciesError) Error() string {
	return fmt.Sprintf("%s: %s requires %s", ErrMissingDependencies.Message, e.Upgrade, strings.Join(e.Missing, ", "))
}

func (e *MissingDependenciesError) Unwrap() error {
	return ErrMissingDependencies
}
