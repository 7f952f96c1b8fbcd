package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackira01/scort-web-site-sub002/pkg/cache"
	"github.com/jackira01/scort-web-site-sub002/pkg/catalog"
	"github.com/jackira01/scort-web-site-sub002/pkg/invoice"
	"github.com/jackira01/scort-web-site-sub002/pkg/logger"
	"github.com/jackira01/scort-web-site-sub002/pkg/message"
	"github.com/jackira01/scort-web-site-sub002/pkg/payment"
	"github.com/jackira01/scort-web-site-sub002/pkg/profile"
	"github.com/jackira01/scort-web-site-sub002/pkg/settings"
)

const defaultPlanKey = "default"

// Invoices is the part of the invoice lifecycle the engine opens and reads.
type Invoices interface {
	Generate(ctx context.Context, req invoice.GenerateRequest) (*invoice.Invoice, error)
	Get(ctx context.Context, id string) (*invoice.Invoice, error)
	PendingForProfile(ctx context.Context, profileID string) (*invoice.Invoice, bool, error)
}

// PaymentConfirmer settles invoices whose total is zero.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, invoiceID string, paymentData map[string]any) (payment.Result, error)
}

// Settings provides typed configuration lookups.
type Settings interface {
	String(ctx context.Context, key, def string) string
	Int(ctx context.Context, key string, def int) int
}

// Dependencies are the collaborators of an Engine. Locker and Composer are optional.
type Dependencies struct {
	Profiles profile.Store
	Catalog  catalog.Reader
	Invoices Invoices
	Payments PaymentConfirmer
	Users    UserDirectory
	Settings Settings
	Locker   Locker
	Composer *message.Composer
}

// Outcome is the result of a purchase flow. Applied is true when the
// entitlement was granted without waiting for payment.
type Outcome struct {
	Profile *profile.Profile `json:"profile"`
	Invoice *invoice.Invoice `json:"invoice,omitempty"`
	Applied bool             `json:"applied"`
	Message *message.Message `json:"message,omitempty"`
}

// Engine enforces the purchase rules for plans and upgrades.
type Engine struct {
	profiles profile.Store
	catalog  catalog.Reader
	invoices Invoices
	payments PaymentConfirmer
	users    UserDirectory
	settings Settings
	locker   Locker
	composer *message.Composer

	cfg         Config
	defaultPlan *cache.TTLCache[string, catalog.PlanDefinition]
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithClock overrides the time source, including the default plan cache.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an Engine. Panics if a required dependency is nil.
func NewEngine(deps Dependencies, opts ...Option) *Engine {
	switch {
	case deps.Profiles == nil:
		panic("entitlement: profile Store is required")
	case deps.Catalog == nil:
		panic("entitlement: catalog Reader is required")
	case deps.Invoices == nil:
		panic("entitlement: Invoices is required")
	case deps.Payments == nil:
		panic("entitlement: PaymentConfirmer is required")
	case deps.Users == nil:
		panic("entitlement: UserDirectory is required")
	case deps.Settings == nil:
		panic("entitlement: Settings is required")
	}

	e := &Engine{
		profiles: deps.Profiles,
		catalog:  deps.Catalog,
		invoices: deps.Invoices,
		payments: deps.Payments,
		users:    deps.Users,
		settings: deps.Settings,
		locker:   deps.Locker,
		composer: deps.Composer,
		cfg:      DefaultConfig(),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.locker == nil {
		e.locker = NewMemoryLocker()
	}
	e.defaultPlan = cache.NewTTLCache[string, catalog.PlanDefinition](e.cfg.DefaultPlanTTL, cache.WithClock(e.now))
	return e
}

// DefaultPlan returns the plan new profiles start on. The lookup is cached
// for the configured TTL.
func (e *Engine) DefaultPlan(ctx context.Context) (catalog.PlanDefinition, error) {
	return e.defaultPlan.GetOrLoad(defaultPlanKey, func() (catalog.PlanDefinition, error) {
		code := e.settings.String(ctx, settings.KeyDefaultPlanCode, e.cfg.DefaultPlanCode)
		plan, err := e.catalog.Plan(ctx, code)
		if err != nil {
			return catalog.PlanDefinition{}, fmt.Errorf("default plan %s: %w", code, err)
		}
		return plan, nil
	})
}

// InvalidateDefaultPlan drops the cached default plan.
func (e *Engine) InvalidateDefaultPlan() {
	e.defaultPlan.Invalidate(defaultPlanKey)
}

// lock takes the profile key and, when given, the order key. The returned
// func releases both.
func (e *Engine) lock(ctx context.Context, profileID, orderID string) (func(), error) {
	keys := []string{"entitlement:profile:" + profileID}
	if orderID != "" {
		keys = append(keys, "entitlement:order:"+orderID)
	}

	var unlocks []func()
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, key := range keys {
		unlock, ok, err := e.locker.TryLock(ctx, key, e.cfg.LockTTL)
		if err != nil {
			release()
			return nil, errors.Join(errors.New("acquire lock"), err)
		}
		if !ok {
			release()
			return nil, fmt.Errorf("%w: %s", ErrOperationInProgress, key)
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

// loadProfile fetches the profile and checks the caller owns it.
func (e *Engine) loadProfile(ctx context.Context, profileID, userID string) (*profile.Profile, error) {
	if profileID == "" {
		return nil, ErrProfileIDRequired
	}
	p, err := e.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if userID != "" && p.UserID != userID {
		e.logger.WarnContext(ctx, "profile owned by another user",
			logger.ProfileID(p.ID),
			logger.UserID(userID),
		)
		return nil, ErrNotOwner
	}
	return p, nil
}

func (e *Engine) checkOrder(p *profile.Profile, orderID string) error {
	if p.HasOrder(orderID) {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, orderID)
	}
	return nil
}

func (e *Engine) ensureNoPending(ctx context.Context, profileID string) error {
	inv, ok, err := e.invoices.PendingForProfile(ctx, profileID)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s", ErrPendingInvoice, inv.ID)
	}
	return nil
}

// resolveVariant returns the plan and the variant with days. Zero days picks
// the cheapest variant.
func (e *Engine) resolveVariant(ctx context.Context, code string, days int) (catalog.PlanDefinition, catalog.Variant, error) {
	if code == "" {
		return catalog.PlanDefinition{}, catalog.Variant{}, ErrPlanCodeRequired
	}
	if days < 0 {
		return catalog.PlanDefinition{}, catalog.Variant{}, ErrInvalidVariantDays
	}
	plan, err := e.catalog.Plan(ctx, code)
	if err != nil {
		return catalog.PlanDefinition{}, catalog.Variant{}, err
	}
	if !plan.Active {
		return catalog.PlanDefinition{}, catalog.Variant{}, fmt.Errorf("%w: %s", catalog.ErrPlanInactive, plan.Code)
	}
	var (
		variant catalog.Variant
		ok      bool
	)
	if days == 0 {
		variant, ok = plan.CheapestVariant()
	} else {
		variant, ok = plan.Variant(days)
	}
	if !ok {
		return catalog.PlanDefinition{}, catalog.Variant{}, fmt.Errorf("%w: %s %d days", catalog.ErrVariantNotFound, plan.Code, days)
	}
	return plan, variant, nil
}

// operation is a checked purchase ready to be applied or invoiced.
type operation struct {
	kind    message.Kind
	plan    *catalog.PlanDefinition
	variant catalog.Variant
	renewal bool
	upgrade *catalog.UpgradeDefinition

	couponCode string
	orderID    string
	admin      bool
	// suspend deactivates the profile while the invoice is pending.
	suspend bool
}

func (op operation) price() int64 {
	if op.upgrade != nil {
		return op.upgrade.Price
	}
	return op.variant.Price
}

func (op operation) itemName() string {
	if op.upgrade != nil {
		return op.upgrade.Name
	}
	return op.plan.Name
}

// execute applies op at once when it is free or admin driven, otherwise it
// opens an invoice. The caller holds the profile lock.
func (e *Engine) execute(ctx context.Context, p *profile.Profile, op operation, now time.Time) (*Outcome, error) {
	if op.admin || op.price() <= 0 {
		if err := e.apply(p, op, now); err != nil {
			return nil, err
		}
		if err := e.profiles.Save(ctx, p); err != nil {
			return nil, errors.Join(errors.New("save profile"), err)
		}
		e.logger.InfoContext(ctx, "entitlement applied",
			logger.ProfileID(p.ID),
			slog.String("kind", string(op.kind)),
			slog.String("item", op.itemName()),
			slog.Bool("admin", op.admin),
		)
		return &Outcome{Profile: p, Applied: true}, nil
	}

	req := invoice.GenerateRequest{
		ProfileID:  p.ID,
		UserID:     p.UserID,
		OrderID:    op.orderID,
		CouponCode: op.couponCode,
	}
	if op.upgrade != nil {
		req.Upgrades = []string{op.upgrade.Code}
	} else {
		req.Plan = &invoice.PlanSelection{Code: op.plan.Code, Days: op.variant.Days, Renewal: op.renewal}
	}

	inv, err := e.invoices.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	if inv.TotalAmount <= 0 {
		return e.settleFree(ctx, inv)
	}

	if op.suspend {
		p.IsActive = false
		p.UpdatedAt = now
		if err := e.profiles.Save(ctx, p); err != nil {
			return nil, errors.Join(errors.New("save profile"), err)
		}
	}

	out := &Outcome{Profile: p, Invoice: inv}
	if e.composer != nil {
		msg := e.composer.Compose(message.Context{
			Kind:        op.kind,
			ProfileID:   p.ID,
			ProfileName: p.Name,
			ItemName:    op.itemName(),
			Days:        op.variant.Days,
			Amount:      inv.TotalAmount,
			InvoiceID:   inv.ID,
		})
		out.Message = &msg
	}
	e.logger.InfoContext(ctx, "invoice opened",
		logger.ProfileID(p.ID),
		logger.InvoiceID(inv.ID),
		slog.String("kind", string(op.kind)),
		slog.Int64("total", inv.TotalAmount),
	)
	return out, nil
}

// settleFree confirms an invoice a coupon brought to zero and returns the
// profile as payment left it.
func (e *Engine) settleFree(ctx context.Context, inv *invoice.Invoice) (*Outcome, error) {
	if _, err := e.payments.ConfirmPayment(ctx, inv.ID, map[string]any{"method": "coupon"}); err != nil {
		return nil, err
	}
	p, err := e.profiles.Get(ctx, inv.ProfileID)
	if err != nil {
		return nil, err
	}
	paid, err := e.invoices.Get(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	return &Outcome{Profile: p, Invoice: paid, Applied: true}, nil
}

func (e *Engine) apply(p *profile.Profile, op operation, now time.Time) error {
	switch {
	case op.upgrade != nil:
		if _, err := p.GrantUpgrade(*op.upgrade, now, op.orderID); err != nil {
			return err
		}
	case op.renewal:
		if err := p.RenewPlan(op.variant.Days, now, op.orderID); err != nil {
			return err
		}
		p.GrantIncluded(*op.plan, now)
		p.Activate()
	default:
		p.AssignPlan(*op.plan, op.variant.Days, now, op.orderID)
		p.GrantIncluded(*op.plan, now)
		p.Activate()
	}
	p.UpdatedAt = now
	return nil
}
