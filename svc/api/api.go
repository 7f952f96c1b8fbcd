package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jackira01/scort-web-site-sub002/pkg/catalog"
	"github.com/jackira01/scort-web-site-sub002/pkg/coupon"
	"github.com/jackira01/scort-web-site-sub002/pkg/entitlement"
	"github.com/jackira01/scort-web-site-sub002/pkg/environment"
	"github.com/jackira01/scort-web-site-sub002/pkg/errs"
	"github.com/jackira01/scort-web-site-sub002/pkg/httpserver"
	"github.com/jackira01/scort-web-site-sub002/pkg/invoice"
	"github.com/jackira01/scort-web-site-sub002/pkg/payment"
	"github.com/jackira01/scort-web-site-sub002/pkg/profile"
	"github.com/jackira01/scort-web-site-sub002/pkg/ranking"
	"github.com/jackira01/scort-web-site-sub002/pkg/sweep"
)

// Headers set by the gateway in front of the API.
const (
	HeaderUserID = "X-User-ID"
	HeaderAdmin  = "X-Admin"
)

// ErrAdminRequired rejects payment settlement and sweep triggers from non-admin callers.
var ErrAdminRequired = errs.Forbidden("admin_required", "admin access required")

// Entitlements is the purchase surface of the entitlement engine.
type Entitlements interface {
	AssignDefaultPlan(ctx context.Context, profileID string) (*entitlement.Outcome, error)
	PurchasePlan(ctx context.Context, req entitlement.PlanPurchase) (*entitlement.Outcome, error)
	RenewPlan(ctx context.Context, req entitlement.PlanRenewal) (*entitlement.Outcome, error)
	UpgradePlan(ctx context.Context, req entitlement.PlanChange) (*entitlement.Outcome, error)
	PurchaseUpgrade(ctx context.Context, req entitlement.UpgradePurchase) (*entitlement.Outcome, error)
	ValidatePurchase(ctx context.Context, req entitlement.PlanPurchase) (entitlement.Check, error)
	ValidateUpgrade(ctx context.Context, req entitlement.UpgradePurchase) (entitlement.Check, error)
	DefaultPlan(ctx context.Context) (catalog.PlanDefinition, error)
}

// Coupons checks and prices coupons.
type Coupons interface {
	Validate(ctx context.Context, code string, target coupon.Target) (coupon.Validation, error)
	Apply(ctx context.Context, req coupon.ApplyRequest) (coupon.Result, error)
}

// Invoices reads invoices.
type Invoices interface {
	Get(ctx context.Context, id string) (*invoice.Invoice, error)
	List(ctx context.Context, f invoice.Filter) ([]invoice.Invoice, error)
}

// Payments settles invoices.
type Payments interface {
	ConfirmPayment(ctx context.Context, invoiceID string, paymentData map[string]any) (payment.Result, error)
	CancelPayment(ctx context.Context, invoiceID, reason string) (payment.Result, error)
	RetryUnapplied(ctx context.Context) (payment.RetryReport, error)
}

// Cleanup drives the expiry sweep.
type Cleanup interface {
	RunNow(ctx context.Context) (sweep.Report, error)
	Status() sweep.Status
	Stats(ctx context.Context) (sweep.Stats, error)
}

// Profiles lists profiles for public listings.
type Profiles interface {
	List(ctx context.Context, q profile.Query) ([]profile.Profile, error)
}

// Dependencies are the services behind the routes. All are required.
type Dependencies struct {
	Entitlements Entitlements
	Coupons      Coupons
	Invoices     Invoices
	Payments     Payments
	Cleanup      Cleanup
	Profiles     Profiles
	Catalog      catalog.Reader
}

// Server maps HTTP requests onto the entitlement services.
type Server struct {
	deps     Dependencies
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
	env      environment.Environment
	checks   map[string]httpserver.Check
	gatherer prometheus.Gatherer
	topTier  int
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for listings.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEnvironment stores env in every request context.
func WithEnvironment(env environment.Environment) Option {
	return func(s *Server) { s.env = env }
}

// WithHealthChecks sets the readiness probes served on /readyz.
func WithHealthChecks(checks map[string]httpserver.Check) Option {
	return func(s *Server) { s.checks = checks }
}

// WithGatherer serves g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithTopTierLevel sets the level at or below which listings order by activity.
func WithTopTierLevel(level int) Option {
	return func(s *Server) { s.topTier = level }
}

// New creates a Server. Panics if a dependency is missing.
func New(deps Dependencies, opts ...Option) *Server {
	switch {
	case deps.Entitlements == nil:
		panic("api: Entitlements is required")
	case deps.Coupons == nil:
		panic("api: Coupons is required")
	case deps.Invoices == nil:
		panic("api: Invoices is required")
	case deps.Payments == nil:
		panic("api: Payments is required")
	case deps.Cleanup == nil:
		panic("api: Cleanup is required")
	case deps.Profiles == nil:
		panic("api: Profiles is required")
	case deps.Catalog == nil:
		panic("api: catalog Reader is required")
	}
	s := &Server{
		deps:     deps,
		validate: newValidator(),
		logger:   slog.Default(),
		now:      time.Now,
		env:      environment.Development,
		gatherer: prometheus.DefaultGatherer,
		topTier:  ranking.DefaultTopTierLevel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(environment.Middleware(s.env))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", httpserver.HealthHandler(s.logger, nil))
	r.Get("/readyz", httpserver.HealthHandler(s.logger, s.checks))
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/profiles/{id}", func(r chi.Router) {
		r.Post("/plan/default", s.assignDefaultPlan)
		r.Post("/plan/purchase", s.purchasePlan)
		r.Post("/plan/renew", s.renewPlan)
		r.Post("/plan/upgrade", s.upgradePlan)
		r.Post("/upgrades", s.purchaseUpgrade)
		r.Post("/validate/plan", s.validatePlan)
		r.Post("/validate/upgrade", s.validateUpgrade)
	})

	r.Post("/coupons/validate", s.validateCoupon)
	r.Post("/coupons/apply", s.applyCoupon)

	r.Get("/invoices", s.listInvoices)
	r.Get("/invoices/{id}", s.getInvoice)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAdmin)

		r.Post("/payments/retry", s.retryPayments)
		r.Post("/payments/{invoiceID}/confirm", s.confirmPayment)
		r.Post("/payments/{invoiceID}/cancel", s.cancelPayment)

		r.Post("/cleanup/run", s.runCleanup)
	})
	r.Get("/cleanup/status", s.cleanupStatus)
	r.Get("/cleanup/stats", s.cleanupStats)

	r.Get("/listings/{surface}", s.listing)

	return r
}

type caller struct {
	userID string
	admin  bool
}

// requireAdmin rejects requests the gateway did not mark as admin.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !callerFrom(r).admin {
			s.fail(w, r, ErrAdminRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerFrom(r *http.Request) caller {
	admin := r.Header.Get(HeaderAdmin)
	return caller{
		userID: r.Header.Get(HeaderUserID),
		admin:  admin == "true" || admin == "1",
	}
}
