package profile

import (
	"slices"
	"time"

	"github.com/jackira01/scort-web-site-sub002/pkg/catalog"
)

// PlanAssignment is the plan window held by a profile.
type PlanAssignment struct {
	PlanID      string    `bson:"plan_id" json:"planId"`
	PlanCode    string    `bson:"plan_code" json:"planCode"`
	VariantDays int       `bson:"variant_days" json:"variantDays"`
	StartAt     time.Time `bson:"start_at" json:"startAt"`
	ExpiresAt   time.Time `bson:"expires_at" json:"expiresAt"`
	OrderID     string    `bson:"order_id,omitempty" json:"orderId,omitempty"`
}

// ActiveAt reports whether the assignment is set and has not expired at now.
func (a *PlanAssignment) ActiveAt(now time.Time) bool {
	return a != nil && a.ExpiresAt.After(now)
}

// UpgradeGrant is one purchase of an upgrade.
type UpgradeGrant struct {
	Code       string     `bson:"code" json:"code"`
	StartAt    time.Time  `bson:"start_at" json:"startAt"`
	EndAt      time.Time  `bson:"end_at" json:"endAt"`
	PurchaseAt time.Time  `bson:"purchase_at" json:"purchaseAt"`
	OrderID    string     `bson:"order_id,omitempty" json:"orderId,omitempty"`
	ExpiredAt  *time.Time `bson:"expired_at,omitempty" json:"expiredAt,omitempty"`
}

// ActiveAt reports whether StartAt <= now < EndAt.
func (g UpgradeGrant) ActiveAt(now time.Time) bool {
	return !now.Before(g.StartAt) && now.Before(g.EndAt)
}

// Profile is a user-owned listing and the entitlements attached to it.
type Profile struct {
	ID             string          `bson:"_id" json:"id"`
	UserID         string          `bson:"user_id" json:"userId"`
	Name           string          `bson:"name" json:"name"`
	Plan           *PlanAssignment `bson:"plan_assignment,omitempty" json:"planAssignment,omitempty"`
	Upgrades       []UpgradeGrant  `bson:"upgrades" json:"upgrades"`
	UpgradeHistory []UpgradeGrant  `bson:"upgrade_history" json:"upgradeHistory"`
	IsActive       bool            `bson:"is_active" json:"isActive"`
	Visible        bool            `bson:"visible" json:"visible"`
	IsDeleted      bool            `bson:"is_deleted" json:"isDeleted"`
	// PaymentHistory holds ids of invoices already applied to the profile.
	PaymentHistory []string `bson:"payment_history" json:"paymentHistory"`
	// OrderIDs is append-only: every order ever granted, including ones whose
	// grant was later extended, replaced or archived.
	OrderIDs       []string  `bson:"order_ids" json:"orderIds"`
	LastActivityAt time.Time `bson:"last_activity_at" json:"lastActivityAt"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updatedAt"`
}

// ShouldBeVisible is the visibility a profile takes when it becomes active.
func ShouldBeVisible(p *Profile) bool {
	return !p.IsDeleted
}

// ActivePlan returns the plan assignment if it is active at now.
func (p *Profile) ActivePlan(now time.Time) *PlanAssignment {
	if p.Plan.ActiveAt(now) {
		return p.Plan
	}
	return nil
}

// HasActivePlan reports whether the profile holds an unexpired plan.
func (p *Profile) HasActivePlan(now time.Time) bool {
	return p.Plan.ActiveAt(now)
}

// ActiveUpgrades returns the grants active at now.
func (p *Profile) ActiveUpgrades(now time.Time) []UpgradeGrant {
	var out []UpgradeGrant
	for _, g := range p.Upgrades {
		if g.ActiveAt(now) {
			out = append(out, g)
		}
	}
	return out
}

// ActiveUpgradeCodes returns the distinct codes of the active grants.
func (p *Profile) ActiveUpgradeCodes(now time.Time) []string {
	var codes []string
	for _, g := range p.ActiveUpgrades(now) {
		if !slices.Contains(codes, g.Code) {
			codes = append(codes, g.Code)
		}
	}
	return codes
}

// HasActiveUpgrade reports whether a grant of code is active at now.
func (p *Profile) HasActiveUpgrade(code string, now time.Time) bool {
	return p.activeGrantIndex(code, now) >= 0
}

func (p *Profile) activeGrantIndex(code string, now time.Time) int {
	for i, g := range p.Upgrades {
		if g.Code == code && g.ActiveAt(now) {
			return i
		}
	}
	return -1
}

// HasOrder reports whether orderID was already granted on this profile.
func (p *Profile) HasOrder(orderID string) bool {
	if orderID == "" {
		return false
	}
	if slices.Contains(p.OrderIDs, orderID) {
		return true
	}
	// documents written before the ledger existed
	if p.Plan != nil && p.Plan.OrderID == orderID {
		return true
	}
	for _, g := range p.Upgrades {
		if g.OrderID == orderID {
			return true
		}
	}
	for _, g := range p.UpgradeHistory {
		if g.OrderID == orderID {
			return true
		}
	}
	return false
}

// HasPayment reports whether the invoice was already applied.
func (p *Profile) HasPayment(invoiceID string) bool {
	return slices.Contains(p.PaymentHistory, invoiceID)
}

// RecordPayment appends invoiceID to the payment history once.
func (p *Profile) RecordPayment(invoiceID string) {
	if !p.HasPayment(invoiceID) {
		p.PaymentHistory = append(p.PaymentHistory, invoiceID)
	}
}

func (p *Profile) recordOrder(orderID string) {
	if orderID != "" && !slices.Contains(p.OrderIDs, orderID) {
		p.OrderIDs = append(p.OrderIDs, orderID)
	}
}

// AssignPlan replaces the plan assignment wholesale with a window starting at now.
func (p *Profile) AssignPlan(plan catalog.PlanDefinition, days int, now time.Time, orderID string) {
	p.Plan = &PlanAssignment{
		PlanID:      plan.ID,
		PlanCode:    plan.Code,
		VariantDays: days,
		StartAt:     now,
		ExpiresAt:   now.AddDate(0, 0, days),
		OrderID:     orderID,
	}
	p.recordOrder(orderID)
}

// RenewPlan extends the current plan by days from max(ExpiresAt, now).
func (p *Profile) RenewPlan(days int, now time.Time, orderID string) error {
	if p.Plan == nil {
		return ErrNoPlan
	}
	from := p.Plan.ExpiresAt
	if from.Before(now) {
		from = now
	}
	p.Plan.ExpiresAt = from.AddDate(0, 0, days)
	p.Plan.VariantDays = days
	if orderID != "" {
		p.Plan.OrderID = orderID
	}
	p.recordOrder(orderID)
	return nil
}

// GrantOutcome tells how GrantUpgrade resolved a purchase.
type GrantOutcome string

const (
	GrantInserted GrantOutcome = "inserted"
	GrantExtended GrantOutcome = "extended"
	GrantReplaced GrantOutcome = "replaced"
)

// GrantUpgrade adds a grant of def at now, resolving an active grant of the
// same code by the upgrade's stacking policy.
func (p *Profile) GrantUpgrade(def catalog.UpgradeDefinition, now time.Time, orderID string) (GrantOutcome, error) {
	return p.grant(def.Code, def.StackingPolicy, now, now.Add(def.Duration()), orderID)
}

// GrantIncluded grants the plan's included upgrades that are not already
// active. Included grants last until the plan expires.
func (p *Profile) GrantIncluded(plan catalog.PlanDefinition, now time.Time) []string {
	if p.Plan == nil {
		return nil
	}
	var granted []string
	for _, code := range plan.IncludedUpgrades {
		if p.HasActiveUpgrade(code, now) {
			continue
		}
		p.Upgrades = append(p.Upgrades, UpgradeGrant{
			Code:       code,
			StartAt:    now,
			EndAt:      p.Plan.ExpiresAt,
			PurchaseAt: now,
		})
		granted = append(granted, code)
	}
	return granted
}

func (p *Profile) grant(code string, policy catalog.StackingPolicy, now, endAt time.Time, orderID string) (GrantOutcome, error) {
	outcome, err := p.stack(code, policy, now, endAt, orderID)
	if err == nil {
		p.recordOrder(orderID)
	}
	return outcome, err
}

func (p *Profile) stack(code string, policy catalog.StackingPolicy, now, endAt time.Time, orderID string) (GrantOutcome, error) {
	i := p.activeGrantIndex(code, now)
	if i < 0 {
		p.Upgrades = append(p.Upgrades, UpgradeGrant{
			Code:       code,
			StartAt:    now,
			EndAt:      endAt,
			PurchaseAt: now,
			OrderID:    orderID,
		})
		return GrantInserted, nil
	}

	switch policy {
	case catalog.StackReject:
		return "", ErrUpgradeAlreadyActive
	case catalog.StackReplace:
		p.Upgrades[i] = UpgradeGrant{
			Code:       code,
			StartAt:    now,
			EndAt:      endAt,
			PurchaseAt: now,
			OrderID:    orderID,
		}
		return GrantReplaced, nil
	case catalog.StackExtend:
		g := &p.Upgrades[i]
		g.EndAt = g.EndAt.Add(endAt.Sub(now))
		g.PurchaseAt = now
		if orderID != "" {
			g.OrderID = orderID
		}
		return GrantExtended, nil
	default:
		return "", ErrUnknownStacking
	}
}

// ArchiveExpiredUpgrades moves grants with EndAt <= now into UpgradeHistory
// stamped with ExpiredAt and returns how many moved.
func (p *Profile) ArchiveExpiredUpgrades(now time.Time) int {
	live := p.Upgrades[:0:0]
	moved := 0
	for _, g := range p.Upgrades {
		if g.EndAt.After(now) {
			live = append(live, g)
			continue
		}
		expired := now
		g.ExpiredAt = &expired
		p.UpgradeHistory = append(p.UpgradeHistory, g)
		moved++
	}
	p.Upgrades = live
	return moved
}

// Activate marks the profile active and visible per ShouldBeVisible.
func (p *Profile) Activate() {
	p.IsActive = true
	p.Visible = ShouldBeVisible(p)
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	c := *p
	if p.Plan != nil {
		plan := *p.Plan
		c.Plan = &plan
	}
	c.Upgrades = cloneGrants(p.Upgrades)
	c.UpgradeHistory = cloneGrants(p.UpgradeHistory)
	c.PaymentHistory = slices.Clone(p.PaymentHistory)
	c.OrderIDs = slices.Clone(p.OrderIDs)
	return &c
}

func cloneGrants(in []UpgradeGrant) []UpgradeGrant {
	if in == nil {
		return nil
	}
	out := make([]UpgradeGrant, len(in))
	for i, g := range in {
		if g.ExpiredAt != nil {
			at := *g.ExpiredAt
			g.ExpiredAt = &at
		}
		out[i] = g
	}
	return out
}
