package entitlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackira01/scort-web-site-sub002/pkg/catalog"
	"github.com/jackira01/scort-web-site-sub002/pkg/coupon"
	"github.com/jackira01/scort-web-site-sub002/pkg/entitlement"
	"github.com/jackira01/scort-web-site-sub002/pkg/invoice"
	"github.com/jackira01/scort-web-site-sub002/pkg/message"
	"github.com/jackira01/scort-web-site-sub002/pkg/payment"
	"github.com/jackira01/scort-web-site-sub002/pkg/profile"
	"github.com/jackira01/scort-web-site-sub002/pkg/settings"
)

var start = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	clk        *clock
	profiles   *profile.MemoryStore
	invoices   *invoice.Service
	coupons    *coupon.MemoryStore
	users      *entitlement.MemoryDirectory
	source     *settings.MemorySource
	locker     *entitlement.MemoryLocker
	reconciler *payment.Reconciler
	engine     *entitlement.Engine
}

func newFixture(t *testing.T, values map[string]any) *fixture {
	t.Helper()
	ctx := context.Background()
	clk := &clock{t: start}

	cat := catalog.NewService(catalog.NewMemoryStore(nil, nil))
	seed, err := catalog.DefaultSeed()
	require.NoError(t, err)
	_, err = cat.Import(ctx, seed)
	require.NoError(t, err)

	coupons := coupon.NewMemoryStore(coupon.Coupon{
		Code:        "REGALO",
		Type:        coupon.TypePlanAssignment,
		PlanCode:    "ORO",
		VariantDays: 30,
		MaxUses:     1,
		IsActive:    true,
	})
	couponEngine := coupon.NewEngine(coupons, cat, coupon.WithClock(clk.now))
	invoices := invoice.NewService(invoice.NewMemoryStore(), cat, couponEngine, invoice.WithClock(clk.now))
	profiles := profile.NewMemoryStore()
	reconciler := payment.NewReconciler(invoices, profiles, cat, couponEngine, payment.WithClock(clk.now))

	users := entitlement.NewMemoryDirectory(
		entitlement.Account{ID: "u1", Type: entitlement.AccountCommon},
		entitlement.Account{ID: "u2", Type: entitlement.AccountAgency, ConversionStatus: "pending"},
		entitlement.Account{ID: "u3", Type: entitlement.AccountAgency, ConversionStatus: entitlement.ConversionApproved},
	)
	source := settings.NewMemorySource(values)
	locker := entitlement.NewMemoryLocker()

	engine := entitlement.NewEngine(entitlement.Dependencies{
		Profiles: profiles,
		Catalog:  cat,
		Invoices: invoices,
		Payments: reconciler,
		Users:    users,
		Settings: settings.New(source, settings.WithTTL(time.Second), settings.WithClock(clk.now)),
		Locker:   locker,
		Composer: message.NewComposer(message.Config{
			CompanyName:    "Acme",
			WhatsAppNumber: "+57 300 000 0000",
			Locale:         "es-419",
			CurrencySymbol: "$",
		}),
	}, entitlement.WithClock(clk.now))

	return &fixture{
		clk:        clk,
		profiles:   profiles,
		invoices:   invoices,
		coupons:    coupons,
		users:      users,
		source:     source,
		locker:     locker,
		reconciler: reconciler,
		engine:     engine,
	}
}

func (f *fixture) addProfile(t *testing.T, id, userID string) {
	t.Helper()
	require.NoError(t, f.profiles.Save(context.Background(), &profile.Profile{
		ID:        id,
		UserID:    userID,
		Name:      "Luna",
		IsActive:  true,
		CreatedAt: f.clk.now(),
	}))
}

func (f *fixture) profile(t *testing.T, id string) *profile.Profile {
	t.Helper()
	p, err := f.profiles.Get(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (f *fixture) adminPlan(t *testing.T, profileID, code string, days int) {
	t.Helper()
	_, err := f.engine.PurchasePlan(context.Background(), entitlement.PlanPurchase{
		ProfileID:   profileID,
		PlanCode:    code,
		VariantDays: days,
		Admin:       true,
	})
	require.NoError(t, err)
}

func TestAssignDefaultPlan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)
	f.addProfile(t, "p1", "u1")

	out, err := f.engine.AssignDefaultPlan(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Nil(t, out.Invoice)

	p := f.profile(t, "p1")
	require.NotNil(t, p.Plan)
	assert.Equal(t, "AMATISTA", p.Plan.PlanCode)
	assert.Equal(t, start.AddDate(0, 0, 30), p.Plan.ExpiresAt)
	assert.True(t, p.IsActive)
	assert.True(t, p.Visible)

	invoices, err := f.invoices.List(ctx, invoice.Filter{ProfileID: "p1"})
	require.NoError(t, err)
	assert.Empty(t, invoices)

	_, err = f.engine.AssignDefaultPlan(ctx, "p1")
	assert.ErrorIs(t, err, entitlement.ErrActivePlan)
}

func TestPurchasePlan(t *testing.T) {
	t.Parallel()

	t.Run("paid plan waits for payment", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, nil)
		f.addProfile(t, "p1", "u1")

		out, err := f.engine.PurchasePlan(ctx, entitlement.PlanPurchase{
			ProfileID:   "p1",
			UserID:      "u1",
			PlanCode:    "oro",
			VariantDays: 30,
		})
		require.NoError(t, err)
		assert.False(t, out.Applied)
		require.NotNil(t, out.Invoice)
		assert.Equal(t, int64(120000), out.Invoice.TotalAmount)
		assert.Equal(t, invoice.StatusPending, out.Invoice.Status)
		require.NotNil(t, out.Message)
		assert.Contains(t, out.Message.Link, "https://wa.me/573000000000?text=")
		assert.Contains(t, out.Message.Text, out.Invoice.ID)

		p := f.profile(t, "p1")
		assert.False(t, p.IsActive)
		assert.Nil(t, p.Plan)

		_, err = f.engine.PurchasePlan(ctx, entitlement.PlanPurchase{ProfileID: "p1", PlanCode: "ZAFIRO", VariantDays: 7})
		assert.ErrorIs(t, err, entitlement.ErrPendingInvoice)

		f.clk.advance(time.Hour)
		res, err := f.reconciler.ConfirmPayment(ctx, out.Invoice.ID, map[string]any{"ref": "tx-1"})
		require.NoError(t, err)
		assert.True(t, res.Success)

		p = f.profile(t, "p1")
		require.NotNil(t, p.Plan)
		assert.Equal(t, "ORO", p.Plan.PlanCode)
		assert.Equal(t, start.Add(time.Hour).AddDate(0, 0, 30), p.Plan.ExpiresAt)
		assert.True(t, p.IsActive)
		assert.True(t, p.Visible)
	})

	t.Run("coupon that waives the total is confirmed at once", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, nil)
		f.addProfile(t, "p1", "u1")

		out, err := f.engine.PurchasePlan(ctx, entitlement.PlanPurchase{
			ProfileID:   "p1",
			PlanCode:    "ESMERALDA",
			VariantDays: 30,
			CouponCode:  "regalo",
		})
		require.NoError(t, err)
		assert.True(t, out.Applied)
		require.NotNil(t, out.Invoice)
		assert.Equal(t, invoice.StatusPaid, out.Invoice.Status)
		assert.Equal(t, "ORO", out.Profile.Plan.PlanCode)

		c, err := f.coupons.GetByCode(ctx, "REGALO")
		require.NoError(t, err)
		assert.Equal(t, 1, c.CurrentUses)
	})

	t.Run("held plan is renewed", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, nil)
		f.addProfile(t, "p1", "u1")
		_, err := f.engine.AssignDefaultPlan(ctx, "p1")
		require.NoError(t, err)

		f.clk.advance(24 * time.Hour)
		out, err := f.engine.PurchasePlan(ctx, entitlement.PlanPurchase{ProfileID: "p1", PlanCode: "AMATISTA", VariantDays: 30})
		require.NoError(t, err)
		assert.True(t, out.Applied)
		assert.Equal(t, start.AddDate(0, 0, 60), out.Profile.Plan.ExpiresAt)
	})

	t.Run("different active plan is refused", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, nil)
		f.addProfile(t, "p1", "u1")
		_, err := f.engine.AssignDefaultPlan(ctx, "p1")
		require.NoError(t, err)

		_, err = f.engine.PurchasePlan(ctx, entitlement.PlanPurchase{ProfileID: "p1", PlanCode: "ORO", VariantDays: 30})
		assert.ErrorIs(t, err, entitlement.ErrActivePlan)
	})

	t.Run("input and ownership", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, nil)
		f.addProfile(t, "p1", "u1")

		_, err := f.engine.PurchasePlan(ctx, entitlement.PlanPurchase{ProfileID: "p1", PlanCode: "ORO", VariantDays: -7})
		assert.ErrorIs(t, err, entitlement.ErrInvalidVariantDays)

		_, err = f.engine.PurchasePlan(ctx, entitlement.PlanPurchase{ProfileID: "p1", UserID: "u9", PlanCode: "ORO", VariantDays: 30})
		assert.ErrorIs(t, err, entitlement.ErrNotOwner)

		_, err = f.engine.PurchasePlan(ctx, entitlement.PlanPurchase{ProfileID: "p1", PlanCode: "ORO", VariantDays: 9})
		assert.ErrorIs(t, err, catalog.ErrVariantNotFound)

		_, err = f.engine.PurchasePlan(ctx, entitlement.PlanPurchase{ProfileID: "nope", PlanCode: "ORO", VariantDays: 30})
		assert.ErrorIs(t, err, profile.ErrProfileNotFound)
	})
}

func TestPurchasePlanZeroDaysPicksCheapest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)
	f.addProfile(t, "p1", "u1")

	out, err := f.engine.PurchasePlan(ctx, entitlement.PlanPurchase{ProfileID: "p1", PlanCode: "ORO"})
	require.NoError(t, err)
	require.NotNil(t, out.Invoice)
	require.Len(t, out.Invoice.Items, 1)
	assert.Equal(t, 7, out.Invoice.Items[0].Days)
	assert.Equal(t, int64(40000), out.Invoice.TotalAmount)

	_, err = f.engine.PurchasePlan(ctx, entitlement.PlanPurchase{ProfileID: "p1", PlanCode: "NOPE"})
	assert.ErrorIs(t, err, catalog.ErrPlanNotFound)
}

func TestRenewPlan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)
	f.addProfile(t, "p1", "u1")
	f.adminPlan(t, "p1", "ZAFIRO", 7)

	_, err := f.engine.RenewPlan(ctx, entitlement.PlanRenewal{ProfileID: "p1", VariantDays: 15, Admin: true})
	require.NoError(t, err)
	assert.Equal(t, start.AddDate(0, 0, 22), f.profile(t, "p1").Plan.ExpiresAt)

	// lapsed plans restart from now
	f.clk.t = start.AddDate(0, 0, 40)
	_, err = f.engine.RenewPlan(ctx, entitlement.PlanRenewal{ProfileID: "p1", VariantDays: 7, Admin: true})
	require.NoError(t, err)
	assert.Equal(t, start.AddDate(0, 0, 47), f.profile(t, "p1").Plan.ExpiresAt)

	f.addProfile(t, "p2", "u1")
	_, err = f.engine.RenewPlan(ctx, entitlement.PlanRenewal{ProfileID: "p2", VariantDays: 7})
	assert.ErrorIs(t, err, profile.ErrNoPlan)
}

func TestUpgradePlan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)
	f.addProfile(t, "p1", "u1")

	_, err := f.engine.UpgradePlan(ctx, entitlement.PlanChange{ProfileID: "p1", PlanCode: "ORO", VariantDays: 7})
	assert.ErrorIs(t, err, entitlement.ErrNoActivePlan)

	_, err = f.engine.AssignDefaultPlan(ctx, "p1")
	require.NoError(t, err)

	out, err := f.engine.UpgradePlan(ctx, entitlement.PlanChange{ProfileID: "p1", PlanCode: "ESMERALDA", VariantDays: 15})
	require.NoError(t, err)
	require.NotNil(t, out.Invoice)
	assert.Equal(t, int64(50000), out.Invoice.TotalAmount)
	assert.Equal(t, "AMATISTA", f.profile(t, "p1").Plan.PlanCode)

	_, err = f.reconciler.ConfirmPayment(ctx, out.Invoice.ID, nil)
	require.NoError(t, err)
	p := f.profile(t, "p1")
	assert.Equal(t, "ESMERALDA", p.Plan.PlanCode)
	assert.Equal(t, start.AddDate(0, 0, 15), p.Plan.ExpiresAt)

	_, err = f.engine.UpgradePlan(ctx, entitlement.PlanChange{ProfileID: "p1", PlanCode: "ESMERALDA", VariantDays: 7})
	assert.ErrorIs(t, err, entitlement.ErrNotAnUpgrade)
	_, err = f.engine.UpgradePlan(ctx, entitlement.PlanChange{ProfileID: "p1", PlanCode: "ZAFIRO", VariantDays: 7})
	assert.ErrorIs(t, err, entitlement.ErrNotAnUpgrade)
}

func TestPurchaseUpgrade(t *testing.T) {
	t.Parallel()

	t.Run("requires an active plan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		f.addProfile(t, "p1", "u1")

		_, err := f.engine.PurchaseUpgrade(context.Background(), entitlement.UpgradePurchase{ProfileID: "p1", UpgradeCode: "DESTACADO"})
		assert.ErrorIs(t, err, entitlement.ErrUpgradeWithoutPlan)
		assert.EqualError(t, err, "cannot buy upgrades without an active plan")
	})

	t.Run("missing dependency", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, nil)
		f.addProfile(t, "p1", "u1")
		f.adminPlan(t, "p1", "ORO", 30)

		_, err := f.engine.PurchaseUpgrade(ctx, entitlement.UpgradePurchase{ProfileID: "p1", UpgradeCode: "IMPULSO"})
		assert.ErrorIs(t, err, entitlement.ErrMissingDependencies)
		var missing *entitlement.MissingDependenciesError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, []string{"DESTACADO"}, missing.Missing)

		check, err := f.engine.ValidateUpgrade(ctx, entitlement.UpgradePurchase{ProfileID: "p1", UpgradeCode: "IMPULSO"})
		require.NoError(t, err)
		assert.False(t, check.Allowed)
		assert.Equal(t, "missing_dependencies", check.Code)
		assert.Equal(t, []string{"DESTACADO"}, check.Missing)

		_, err = f.engine.PurchaseUpgrade(ctx, entitlement.UpgradePurchase{ProfileID: "p1", UpgradeCode: "DESTACADO", Admin: true})
		require.NoError(t, err)
		check, err = f.engine.ValidateUpgrade(ctx, entitlement.UpgradePurchase{ProfileID: "p1", UpgradeCode: "IMPULSO"})
		require.NoError(t, err)
		assert.True(t, check.Allowed)
	})

	t.Run("included upgrade satisfies dependency", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, nil)
		f.addProfile(t, "p1", "u1")
		f.adminPlan(t, "p1", "DIAMANTE", 30)
		assert.Equal(t, []string{"DESTACADO"}, f.profile(t, "p1").ActiveUpgradeCodes(start))

		out, err := f.engine.PurchaseUpgrade(ctx, entitlement.UpgradePurchase{ProfileID: "p1", UpgradeCode: "IMPULSO"})
		require.NoError(t, err)
		require.NotNil(t, out.Invoice)
		assert.Equal(t, int64(10000), out.Invoice.TotalAmount)
		// upgrades never suspend the profile
		assert.True(t, f.profile(t, "p1").IsActive)
	})

	t.Run("stacking", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, nil)
		f.addProfile(t, "p1", "u1")
		f.adminPlan(t, "p1", "ORO", 30)

		for range 2 {
			_, err := f.engine.PurchaseUpgrade(ctx, entitlement.UpgradePurchase{ProfileID: "p1", UpgradeCode: "DESTACADO", Admin: true})
			require.NoError(t, err)
		}
		p := f.profile(t, "p1")
		require.Len(t, p.Upgrades, 1)
		assert.Equal(t, start.Add(48*time.Hour), p.Upgrades[0].EndAt)

		_, err := f.engine.PurchaseUpgrade(ctx, entitlement.UpgradePurchase{ProfileID: "p1", UpgradeCode: "PORTADA", Admin: true})
		require.NoError(t, err)
		_, err = f.engine.PurchaseUpgrade(ctx, entitlement.UpgradePurchase{ProfileID: "p1", UpgradeCode: "PORTADA", Admin: true})
		assert.ErrorIs(t, err, profile.ErrUpgradeAlreadyActive)
	})
}

func TestOrderIdempotency(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)
	f.addProfile(t, "p1", "u1")

	_, err := f.engine.PurchasePlan(ctx, entitlement.PlanPurchase{ProfileID: "p1", PlanCode: "ORO", VariantDays: 7, OrderID: "o1", Admin: true})
	require.NoError(t, err)

	_, err = f.engine.PurchaseUpgrade(ctx, entitlement.UpgradePurchase{ProfileID: "p1", UpgradeCode: "DESTACADO", OrderID: "o1", Admin: true})
	assert.ErrorIs(t, err, entitlement.ErrDuplicateOrder)

	unlock, ok, err := f.locker.TryLock(ctx, "entitlement:order:o2", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = f.engine.PurchaseUpgrade(ctx, entitlement.UpgradePurchase{ProfileID: "p1", UpgradeCode: "DESTACADO", OrderID: "o2", Admin: true})
	assert.ErrorIs(t, err, entitlement.ErrOperationInProgress)

	unlock()
	_, err = f.engine.PurchaseUpgrade(ctx, entitlement.UpgradePurchase{ProfileID: "p1", UpgradeCode: "DESTACADO", OrderID: "o2", Admin: true})
	require.NoError(t, err)
}

func TestLimits(t *testing.T) {
	t.Parallel()

	t.Run("free cap", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, nil)
		f.addProfile(t, "p1", "u1")
		f.addProfile(t, "p2", "u1")
		_, err := f.engine.AssignDefaultPlan(ctx, "p1")
		require.NoError(t, err)

		_, err = f.engine.AssignDefaultPlan(ctx, "p2")
		assert.ErrorIs(t, err, entitlement.ErrFreeLimit)
		assert.Nil(t, f.profile(t, "p2").Plan)
	})

	t.Run("caps come from settings", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, map[string]any{
			settings.LimitKey("common", "free"):    2,
			settings.LimitKey("common", "visible"): 2,
		})
		for _, id := range []string{"p1", "p2", "p3"} {
			f.addProfile(t, id, "u1")
		}
		_, err := f.engine.AssignDefaultPlan(ctx, "p1")
		require.NoError(t, err)
		_, err = f.engine.AssignDefaultPlan(ctx, "p2")
		require.NoError(t, err)

		_, err = f.engine.PurchasePlan(ctx, entitlement.PlanPurchase{ProfileID: "p3", PlanCode: "ORO", VariantDays: 7})
		assert.ErrorIs(t, err, entitlement.ErrVisibleLimit)

		check, err := f.engine.ValidatePurchase(ctx, entitlement.PlanPurchase{ProfileID: "p3", PlanCode: "ORO"})
		require.NoError(t, err)
		assert.False(t, check.Allowed)
		assert.Equal(t, "visible_limit", check.Code)
	})

	t.Run("agency needs approval", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		f.addProfile(t, "p1", "u2")

		_, err := f.engine.AssignDefaultPlan(context.Background(), "p1")
		assert.ErrorIs(t, err, entitlement.ErrAgencyNotApproved)
	})

	t.Run("plan cap applies to admin grants", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, nil)
		f.addProfile(t, "p1", "u3")
		f.addProfile(t, "p2", "u3")
		f.adminPlan(t, "p1", "DIAMANTE", 7)

		_, err := f.engine.PurchasePlan(ctx, entitlement.PlanPurchase{ProfileID: "p2", PlanCode: "DIAMANTE", VariantDays: 7, Admin: true})
		assert.ErrorIs(t, err, entitlement.ErrPlanLimit)

		_, err = f.engine.PurchasePlan(ctx, entitlement.PlanPurchase{ProfileID: "p2", PlanCode: "ORO", VariantDays: 7, Admin: true})
		require.NoError(t, err)
	})

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		f.addProfile(t, "p1", "u9")

		_, err := f.engine.AssignDefaultPlan(context.Background(), "p1")
		assert.ErrorIs(t, err, entitlement.ErrUserNotFound)
	})
}

func TestValidatePurchaseHasNoSideEffects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)
	f.addProfile(t, "p1", "u1")
	before := f.profile(t, "p1")

	check, err := f.engine.ValidatePurchase(ctx, entitlement.PlanPurchase{ProfileID: "p1", PlanCode: "ORO", VariantDays: 30})
	require.NoError(t, err)
	assert.True(t, check.Allowed)

	assert.Equal(t, before, f.profile(t, "p1"))
	invoices, err := f.invoices.List(ctx, invoice.Filter{ProfileID: "p1"})
	require.NoError(t, err)
	assert.Empty(t, invoices)

	check, err = f.engine.ValidatePurchase(ctx, entitlement.PlanPurchase{ProfileID: "missing", PlanCode: "ORO"})
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.Equal(t, "profile_not_found", check.Code)
}

func TestDefaultPlanCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)

	plan, err := f.engine.DefaultPlan(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AMATISTA", plan.Code)

	f.source.Set(settings.KeyDefaultPlanCode, "ZAFIRO")
	f.clk.advance(2 * time.Second)

	plan, err = f.engine.DefaultPlan(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AMATISTA", plan.Code, "cached until the TTL passes")

	f.engine.InvalidateDefaultPlan()
	plan, err = f.engine.DefaultPlan(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ZAFIRO", plan.Code)

	f.source.Set(settings.KeyDefaultPlanCode, "AMATISTA")
	f.clk.advance(6 * time.Minute)
	plan, err = f.engine.DefaultPlan(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AMATISTA", plan.Code)

	f.addProfile(t, "p1", "u1")
	f.source.Set(settings.KeyDefaultPlanCode, "ZAFIRO")
	f.clk.advance(6 * time.Minute)
	_, err = f.engine.AssignDefaultPlan(ctx, "p1")
	assert.ErrorIs(t, err, entitlement.ErrDefaultPlanNotFree)
}

func TestReplayedOrderAfterNewerOrder(t *testing.T) {
	t.Parallel()

	t.Run("extended upgrade", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, nil)
		f.addProfile(t, "p1", "u1")
		f.adminPlan(t, "p1", "ORO", 30)

		for _, order := range []string{"o1", "o2"} {
			_, err := f.engine.PurchaseUpgrade(ctx, entitlement.UpgradePurchase{ProfileID: "p1", UpgradeCode: "DESTACADO", OrderID: order, Admin: true})
			require.NoError(t, err)
		}
		endAt := f.profile(t, "p1").Upgrades[0].EndAt

		_, err := f.engine.PurchaseUpgrade(ctx, entitlement.UpgradePurchase{ProfileID: "p1", UpgradeCode: "DESTACADO", OrderID: "o1", Admin: true})
		assert.ErrorIs(t, err, entitlement.ErrDuplicateOrder)
		assert.Equal(t, endAt, f.profile(t, "p1").Upgrades[0].EndAt)
	})

	t.Run("replaced upgrade", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, nil)
		f.addProfile(t, "p1", "u1")
		f.adminPlan(t, "p1", "ORO", 30)
		_, err := f.engine.PurchaseUpgrade(ctx, entitlement.UpgradePurchase{ProfileID: "p1", UpgradeCode: "DESTACADO", Admin: true})
		require.NoError(t, err)

		for _, order := range []string{"o1", "o2"} {
			_, err := f.engine.PurchaseUpgrade(ctx, entitlement.UpgradePurchase{ProfileID: "p1", UpgradeCode: "IMPULSO", OrderID: order, Admin: true})
			require.NoError(t, err)
		}

		_, err = f.engine.PurchaseUpgrade(ctx, entitlement.UpgradePurchase{ProfileID: "p1", UpgradeCode: "IMPULSO", OrderID: "o1", Admin: true})
		assert.ErrorIs(t, err, entitlement.ErrDuplicateOrder)
	})

	t.Run("renewal", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, nil)
		f.addProfile(t, "p1", "u1")
		f.adminPlan(t, "p1", "ORO", 7)

		for _, order := range []string{"r1", "r2"} {
			_, err := f.engine.RenewPlan(ctx, entitlement.PlanRenewal{ProfileID: "p1", VariantDays: 7, OrderID: order, Admin: true})
			require.NoError(t, err)
		}
		expires := f.profile(t, "p1").Plan.ExpiresAt
		assert.Equal(t, start.AddDate(0, 0, 21), expires)

		_, err := f.engine.RenewPlan(ctx, entitlement.PlanRenewal{ProfileID: "p1", VariantDays: 7, OrderID: "r1", Admin: true})
		assert.ErrorIs(t, err, entitlement.ErrDuplicateOrder)
		assert.Equal(t, expires, f.profile(t, "p1").Plan.ExpiresAt)
		assert.Equal(t, []string{"r1", "r2"}, f.profile(t, "p1").OrderIDs)
	})
}
