package profile_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackira01/scort-web-site-sub002/pkg/catalog"
	"github.com/jackira01/scort-web-site-sub002/pkg/profile"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func upgradeDef(code string, policy catalog.StackingPolicy) catalog.UpgradeDefinition {
	return catalog.UpgradeDefinition{Code: code, DurationHours: 24, StackingPolicy: policy, Active: true}
}

func TestProfile_RenewPlan(t *testing.T) {
	t.Parallel()

	t.Run("active plan extends from current expiry", func(t *testing.T) {
		t.Parallel()
		expires := now.Add(5 * 24 * time.Hour)
		p := &profile.Profile{Plan: &profile.PlanAssignment{PlanCode: "ORO", StartAt: now.AddDate(0, 0, -25), ExpiresAt: expires}}

		require.NoError(t, p.RenewPlan(30, now, "order-1"))
		assert.Equal(t, expires.AddDate(0, 0, 30), p.Plan.ExpiresAt)
		assert.Equal(t, 30, p.Plan.VariantDays)
		assert.Equal(t, "order-1", p.Plan.OrderID)
	})

	t.Run("expired plan extends from now", func(t *testing.T) {
		t.Parallel()
		p := &profile.Profile{Plan: &profile.PlanAssignment{PlanCode: "ORO", ExpiresAt: now.Add(-time.Hour)}}

		require.NoError(t, p.RenewPlan(7, now, ""))
		assert.Equal(t, now.AddDate(0, 0, 7), p.Plan.ExpiresAt)
	})

	t.Run("expiring exactly now extends from now", func(t *testing.T) {
		t.Parallel()
		p := &profile.Profile{Plan: &profile.PlanAssignment{PlanCode: "ORO", ExpiresAt: now}}

		require.NoError(t, p.RenewPlan(15, now, ""))
		assert.Equal(t, now.AddDate(0, 0, 15), p.Plan.ExpiresAt)
	})

	t.Run("no plan", func(t *testing.T) {
		t.Parallel()
		require.ErrorIs(t, (&profile.Profile{}).RenewPlan(30, now, ""), profile.ErrNoPlan)
	})

	t.Run("never loses remaining time", func(t *testing.T) {
		t.Parallel()
		for _, offset := range []time.Duration{-48 * time.Hour, -time.Second, 0, time.Second, 72 * time.Hour, 29 * 24 * time.Hour} {
			for _, days := range []int{7, 15, 30} {
				expires := now.Add(offset)
				p := &profile.Profile{Plan: &profile.PlanAssignment{ExpiresAt: expires}}
				require.NoError(t, p.RenewPlan(days, now, ""))

				want := now.AddDate(0, 0, days)
				if expires.After(now) {
					want = expires.AddDate(0, 0, days)
				}
				assert.Equal(t, want, p.Plan.ExpiresAt, "offset %s days %d", offset, days)
			}
		}
	})
}

func TestProfile_AssignPlan(t *testing.T) {
	t.Parallel()

	p := &profile.Profile{}
	plan := catalog.PlanDefinition{ID: "plan-1", Code: "DIAMANTE", IncludedUpgrades: []string{"DESTACADO"}}
	p.AssignPlan(plan, 30, now, "order-9")

	require.NotNil(t, p.Plan)
	assert.Equal(t, "DIAMANTE", p.Plan.PlanCode)
	assert.Equal(t, now, p.Plan.StartAt)
	assert.Equal(t, now.AddDate(0, 0, 30), p.Plan.ExpiresAt)
	assert.True(t, p.HasActivePlan(now))
	assert.False(t, p.HasActivePlan(now.AddDate(0, 0, 30)))
	assert.True(t, p.HasOrder("order-9"))

	granted := p.GrantIncluded(plan, now)
	assert.Equal(t, []string{"DESTACADO"}, granted)
	assert.True(t, p.HasActiveUpgrade("DESTACADO", now))
	assert.Equal(t, p.Plan.ExpiresAt, p.Upgrades[0].EndAt)

	assert.Empty(t, p.GrantIncluded(plan, now), "already active grants are not duplicated")
}

func TestProfile_GrantUpgrade(t *testing.T) {
	t.Parallel()

	active := func() *profile.Profile {
		return &profile.Profile{Upgrades: []profile.UpgradeGrant{{
			Code:    "DESTACADO",
			StartAt: now.Add(-2 * time.Hour),
			EndAt:   now.Add(22 * time.Hour),
		}}}
	}

	t.Run("reject keeps end unchanged", func(t *testing.T) {
		t.Parallel()
		p := active()
		_, err := p.GrantUpgrade(upgradeDef("DESTACADO", catalog.StackReject), now, "")
		require.ErrorIs(t, err, profile.ErrUpgradeAlreadyActive)
		assert.Equal(t, now.Add(22*time.Hour), p.Upgrades[0].EndAt)
	})

	t.Run("extend lengthens end and keeps start", func(t *testing.T) {
		t.Parallel()
		p := active()
		outcome, err := p.GrantUpgrade(upgradeDef("DESTACADO", catalog.StackExtend), now, "order-2")
		require.NoError(t, err)
		assert.Equal(t, profile.GrantExtended, outcome)
		require.Len(t, p.Upgrades, 1)
		assert.Equal(t, now.Add(46*time.Hour), p.Upgrades[0].EndAt)
		assert.Equal(t, now.Add(-2*time.Hour), p.Upgrades[0].StartAt)
		assert.True(t, p.HasOrder("order-2"))
	})

	t.Run("replace resets window", func(t *testing.T) {
		t.Parallel()
		p := active()
		outcome, err := p.GrantUpgrade(upgradeDef("DESTACADO", catalog.StackReplace), now, "")
		require.NoError(t, err)
		assert.Equal(t, profile.GrantReplaced, outcome)
		require.Len(t, p.Upgrades, 1)
		assert.Equal(t, now, p.Upgrades[0].StartAt)
		assert.Equal(t, now.Add(24*time.Hour), p.Upgrades[0].EndAt)
	})

	t.Run("no active grant inserts", func(t *testing.T) {
		t.Parallel()
		p := &profile.Profile{Upgrades: []profile.UpgradeGrant{{Code: "DESTACADO", StartAt: now.Add(-48 * time.Hour), EndAt: now.Add(-24 * time.Hour)}}}
		outcome, err := p.GrantUpgrade(upgradeDef("DESTACADO", catalog.StackReject), now, "")
		require.NoError(t, err)
		assert.Equal(t, profile.GrantInserted, outcome)
		assert.Len(t, p.Upgrades, 2)
		assert.Equal(t, []string{"DESTACADO"}, p.ActiveUpgradeCodes(now))
	})

	t.Run("unknown policy", func(t *testing.T) {
		t.Parallel()
		_, err := active().GrantUpgrade(upgradeDef("DESTACADO", "merge"), now, "")
		require.ErrorIs(t, err, profile.ErrUnknownStacking)
	})
}

func TestProfile_ArchiveExpiredUpgrades(t *testing.T) {
	t.Parallel()

	p := &profile.Profile{Upgrades: []profile.UpgradeGrant{
		{Code: "DESTACADO", StartAt: now.Add(-48 * time.Hour), EndAt: now.Add(-24 * time.Hour), OrderID: "o1"},
		{Code: "IMPULSO", StartAt: now.Add(-time.Hour), EndAt: now.Add(time.Hour)},
		{Code: "BADGE", StartAt: now.Add(-time.Hour), EndAt: now},
	}}

	assert.Equal(t, 2, p.ArchiveExpiredUpgrades(now))
	require.Len(t, p.Upgrades, 1)
	assert.Equal(t, "IMPULSO", p.Upgrades[0].Code)
	require.Len(t, p.UpgradeHistory, 2)
	for _, g := range p.UpgradeHistory {
		require.NotNil(t, g.ExpiredAt)
		assert.Equal(t, now, *g.ExpiredAt)
	}
	assert.True(t, p.HasOrder("o1"), "archived orders still count")

	assert.Zero(t, p.ArchiveExpiredUpgrades(now))
	assert.Len(t, p.UpgradeHistory, 2)
}

func TestProfile_OrderLedger(t *testing.T) {
	t.Parallel()

	p := &profile.Profile{}
	p.AssignPlan(catalog.PlanDefinition{Code: "ORO"}, 7, now, "plan-1")
	require.NoError(t, p.RenewPlan(7, now, "renew-1"))
	require.NoError(t, p.RenewPlan(7, now, "renew-2"))

	_, err := p.GrantUpgrade(upgradeDef("DESTACADO", catalog.StackExtend), now, "ext-1")
	require.NoError(t, err)
	_, err = p.GrantUpgrade(upgradeDef("DESTACADO", catalog.StackExtend), now, "ext-2")
	require.NoError(t, err)
	_, err = p.GrantUpgrade(upgradeDef("IMPULSO", catalog.StackReplace), now, "rep-1")
	require.NoError(t, err)
	_, err = p.GrantUpgrade(upgradeDef("IMPULSO", catalog.StackReplace), now, "rep-2")
	require.NoError(t, err)
	_, err = p.GrantUpgrade(upgradeDef("IMPULSO", catalog.StackReject), now, "rej-1")
	require.Error(t, err)

	assert.Equal(t, []string{"plan-1", "renew-1", "renew-2", "ext-1", "ext-2", "rep-1", "rep-2"}, p.OrderIDs)
	for _, id := range p.OrderIDs {
		assert.True(t, p.HasOrder(id), id)
	}
	assert.False(t, p.HasOrder("rej-1"), "rejected grants record nothing")

	// documents without the ledger still match their current order ids
	legacy := &profile.Profile{Plan: &profile.PlanAssignment{OrderID: "old"}}
	assert.True(t, legacy.HasOrder("old"))
}

func TestProfile_PaymentsAndVisibility(t *testing.T) {
	t.Parallel()

	p := &profile.Profile{}
	p.RecordPayment("inv-1")
	p.RecordPayment("inv-1")
	assert.Equal(t, []string{"inv-1"}, p.PaymentHistory)
	assert.True(t, p.HasPayment("inv-1"))
	assert.False(t, p.HasOrder(""))

	p.Activate()
	assert.True(t, p.IsActive)
	assert.True(t, p.Visible)

	deleted := &profile.Profile{IsDeleted: true}
	deleted.Activate()
	assert.True(t, deleted.IsActive)
	assert.False(t, deleted.Visible)
}

func TestProfile_Clone(t *testing.T) {
	t.Parallel()

	at := now
	p := &profile.Profile{
		Plan:           &profile.PlanAssignment{PlanCode: "ORO"},
		Upgrades:       []profile.UpgradeGrant{{Code: "DESTACADO"}},
		UpgradeHistory: []profile.UpgradeGrant{{Code: "IMPULSO", ExpiredAt: &at}},
		PaymentHistory: []string{"inv-1"},
	}
	c := p.Clone()
	c.Plan.PlanCode = "DIAMANTE"
	c.Upgrades[0].Code = "X"
	*c.UpgradeHistory[0].ExpiredAt = now.Add(time.Hour)
	c.PaymentHistory[0] = "inv-2"

	assert.Equal(t, "ORO", p.Plan.PlanCode)
	assert.Equal(t, "DESTACADO", p.Upgrades[0].Code)
	assert.Equal(t, now, *p.UpgradeHistory[0].ExpiredAt)
	assert.Equal(t, "inv-1", p.PaymentHistory[0])
}
