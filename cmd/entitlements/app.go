package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jackira01/scort-web-site-sub002/pkg/catalog"
	"github.com/jackira01/scort-web-site-sub002/pkg/coupon"
	"github.com/jackira01/scort-web-site-sub002/pkg/entitlement"
	"github.com/jackira01/scort-web-site-sub002/pkg/environment"
	"github.com/jackira01/scort-web-site-sub002/pkg/httpserver"
	"github.com/jackira01/scort-web-site-sub002/pkg/invoice"
	"github.com/jackira01/scort-web-site-sub002/pkg/logger"
	"github.com/jackira01/scort-web-site-sub002/pkg/message"
	"github.com/jackira01/scort-web-site-sub002/pkg/mongo"
	"github.com/jackira01/scort-web-site-sub002/pkg/payment"
	"github.com/jackira01/scort-web-site-sub002/pkg/redis"
	"github.com/jackira01/scort-web-site-sub002/pkg/settings"
	"github.com/jackira01/scort-web-site-sub002/pkg/sweep"
	"github.com/jackira01/scort-web-site-sub002/svc/api"
	"github.com/jackira01/scort-web-site-sub002/svc/store"
)

// app holds the wired services of one process.
type app struct {
	cfg        Config
	log        *slog.Logger
	stores     *store.Stores
	catalog    *catalog.Service
	coupons    *coupon.Engine
	invoices   *invoice.Service
	reconciler *payment.Reconciler
	settings   *settings.Settings
	engine     *entitlement.Engine
	sweeper    *sweep.Sweeper
	registry   *prometheus.Registry
	checks     map[string]httpserver.Check
	closers    []func(context.Context) error
}

func newLogger(cfg Config) *slog.Logger {
	return logger.FromConfig(cfg.Logger, environment.Parse(cfg.Env),
		logger.WithContextExtractors(environment.LoggerExtractor(), requestIDExtractor),
	)
}

func requestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	id := middleware.GetReqID(ctx)
	if id == "" {
		return slog.Attr{}, false
	}
	return slog.String("request_id", id), true
}

// newApp connects the stores and wires every service. The caller must call close.
func newApp(ctx context.Context, cfg Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, checks: map[string]httpserver.Check{}}

	db, err := mongo.Open(ctx, cfg.Mongo)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Client().Disconnect)
	a.checks["mongo"] = mongo.Healthcheck(db.Client())
	a.stores = store.New(db)

	locker, err := a.locker(ctx)
	if err != nil {
		_ = a.close(context.WithoutCancel(ctx))
		return nil, err
	}

	a.catalog = catalog.NewService(a.stores.Catalog, catalog.WithLogger(log.With(logger.Component("catalog"))))
	a.coupons = coupon.NewEngine(a.stores.Coupons, a.catalog, coupon.WithLogger(log.With(logger.Component("coupon"))))
	a.invoices = invoice.NewService(a.stores.Invoices, a.catalog, a.coupons,
		invoice.WithTTL(cfg.Invoice.TTL),
		invoice.WithLogger(log.With(logger.Component("invoice"))),
	)
	a.reconciler = payment.NewReconciler(a.invoices, a.stores.Profiles, a.catalog, a.coupons,
		payment.WithLogger(log.With(logger.Component("payment"))),
	)
	a.settings = settings.NewFromConfig(a.stores.Settings, cfg.Settings, settings.WithLogger(log))

	a.engine = entitlement.NewEngine(entitlement.Dependencies{
		Profiles: a.stores.Profiles,
		Catalog:  a.catalog,
		Invoices: a.invoices,
		Payments: a.reconciler,
		Users:    a.stores.Users,
		Settings: a.settings,
		Locker:   locker,
		Composer: message.NewComposer(cfg.Message),
	},
		entitlement.WithConfig(cfg.Entitlement),
		entitlement.WithLogger(log.With(logger.Component("entitlement"))),
	)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.sweeper = sweep.New(a.stores.Profiles,
		sweep.WithConfig(cfg.Sweep),
		sweep.WithLogger(log.With(logger.Component("sweep"))),
		sweep.WithMetrics(sweep.NewMetrics(a.registry)),
		sweep.WithInvoiceExpirer(a.invoices),
		sweep.WithRetrier(a.reconciler),
	)
	return a, nil
}

func (a *app) locker(ctx context.Context) (entitlement.Locker, error) {
	switch a.cfg.LockBackend {
	case lockMemory:
		a.log.WarnContext(ctx, "using in-process order locks; run a single instance only")
		return entitlement.NewMemoryLocker(), nil
	case lockRedis, "":
		client, err := redis.Connect(ctx, a.cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		a.checks["redis"] = redis.Healthcheck(client)
		return redis.NewOrderLocker(client,
			redis.WithPrefix(a.cfg.Redis.LockPrefix),
			redis.WithLogger(a.log.With(logger.Component("locker"))),
		), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", a.cfg.LockBackend)
	}
}

func (a *app) handler() *api.Server {
	return api.New(api.Dependencies{
		Entitlements: a.engine,
		Coupons:      a.coupons,
		Invoices:     a.invoices,
		Payments:     a.reconciler,
		Cleanup:      a.sweeper,
		Profiles:     a.stores.Profiles,
		Catalog:      a.catalog,
	},
		api.WithLogger(a.log.With(logger.Component("api"))),
		api.WithEnvironment(environment.Parse(a.cfg.Env)),
		api.WithHealthChecks(a.checks),
		api.WithGatherer(a.registry),
		api.WithTopTierLevel(a.cfg.TopTierLevel),
	)
}

// close releases connections in reverse order of creation.
func (a *app) close(ctx context.Context) error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
