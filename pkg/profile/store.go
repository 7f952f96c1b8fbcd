package profile

import (
	"context"
	"slices"
	"time"
)

// Query selects profiles for counting and listing. Deleted profiles are never matched.
type Query struct {
	UserID    string
	ExcludeID string
	// PlanCodes keeps profiles whose plan code is in the list.
	PlanCodes []string
	// NotPlanCodes drops profiles whose plan code is in the list.
	NotPlanCodes []string
	VisibleOnly  bool
	ActiveOnly   bool
	// PlanActiveAt keeps profiles whose plan expires after the instant. Zero disables the filter.
	PlanActiveAt time.Time
	Limit        int
}

// Store is the document store holding profiles. Every method is atomic per
// profile; nothing spans documents.
type Store interface {
	// Get returns ErrProfileNotFound when id is unknown.
	Get(ctx context.Context, id string) (*Profile, error)
	// Save replaces the whole document.
	Save(ctx context.Context, p *Profile) error
	Count(ctx context.Context, q Query) (int, error)
	List(ctx context.Context, q Query) ([]Profile, error)

	// ExpiredVisibleIDs lists visible active profiles whose plan expired at or before now.
	ExpiredVisibleIDs(ctx context.Context, now time.Time) ([]string, error)
	// HideExpired sets visible=false when the profile is still visible, active
	// and expired at now. It reports whether the write happened.
	HideExpired(ctx context.Context, id string, now time.Time) (bool, error)

	// ExpiredUpgradeIDs lists profiles holding a grant with endAt <= now.
	ExpiredUpgradeIDs(ctx context.Context, now time.Time) ([]string, error)
	// ArchiveExpiredUpgrades moves grants with endAt <= now into the history
	// and returns how many moved.
	ArchiveExpiredUpgrades(ctx context.Context, id string, now time.Time) (int, error)
}

// Matches reports whether p satisfies q.
func (q Query) Matches(p *Profile) bool {
	if p.IsDeleted {
		return false
	}
	if q.UserID != "" && p.UserID != q.UserID {
		return false
	}
	if q.ExcludeID != "" && p.ID == q.ExcludeID {
		return false
	}
	if q.VisibleOnly && !p.Visible {
		return false
	}
	if q.ActiveOnly && !p.IsActive {
		return false
	}
	if !q.PlanActiveAt.IsZero() && !p.Plan.ActiveAt(q.PlanActiveAt) {
		return false
	}
	code := ""
	if p.Plan != nil {
		code = p.Plan.PlanCode
	}
	if len(q.PlanCodes) > 0 && !slices.Contains(q.PlanCodes, code) {
		return false
	}
	if len(q.NotPlanCodes) > 0 && slices.Contains(q.NotPlanCodes, code) {
		return false
	}
	return true
}
