package sweep

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jackira01/scort-web-site-sub002/pkg/logger"
	"github.com/jackira01/scort-web-site-sub002/pkg/payment"
)

const (
	taskHide    = "hide_expired"
	taskArchive = "archive_upgrades"

	flightKey = "sweep"
)

// Store is the part of the profile store a sweep touches.
type Store interface {
	ExpiredVisibleIDs(ctx context.Context, now time.Time) ([]string, error)
	HideExpired(ctx context.Context, id string, now time.Time) (bool, error)
	ExpiredUpgradeIDs(ctx context.Context, now time.Time) ([]string, error)
	ArchiveExpiredUpgrades(ctx context.Context, id string, now time.Time) (int, error)
}

// InvoiceExpirer moves overdue pending invoices to expired.
type InvoiceExpirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// Retrier re-applies paid invoices that never reached their profile.
type Retrier interface {
	RetryUnapplied(ctx context.Context) (payment.RetryReport, error)
}

// Report describes one sweep run.
type Report struct {
	StartedAt        time.Time `json:"startedAt"`
	FinishedAt       time.Time `json:"finishedAt"`
	Hidden           int       `json:"hidden"`
	HideFailed       int       `json:"hideFailed"`
	Archived         int       `json:"archived"`
	ArchivedProfiles int       `json:"archivedProfiles"`
	ArchiveFailed    int       `json:"archiveFailed"`
	ExpiredInvoices  int       `json:"expiredInvoices"`
	Reapplied        int       `json:"reapplied"`
	Err              string    `json:"error,omitempty"`
}

// Duration is how long the run took.
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Status is a snapshot of the sweeper lifecycle.
type Status struct {
	Running   bool          `json:"running"`
	InFlight  bool          `json:"inFlight"`
	StartedAt *time.Time    `json:"startedAt,omitempty"`
	Interval  time.Duration `json:"interval"`
	Runs      int64         `json:"runs"`
	LastRun   *Report       `json:"lastRun,omitempty"`
}

// Stats counts work waiting for the next run.
type Stats struct {
	PendingHide    int     `json:"pendingHide"`
	PendingArchive int     `json:"pendingArchive"`
	LastRun        *Report `json:"lastRun,omitempty"`
}

// Sweeper hides profiles with lapsed plans and archives expired upgrade
// grants, on a ticker or on demand. At most one run executes at a time.
type Sweeper struct {
	store    Store
	invoices InvoiceExpirer
	retrier  Retrier
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger
	metrics  *Metrics

	flight   singleflight.Group
	inFlight atomic.Bool
	runs     atomic.Int64

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	last      *Report
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithConfig replaces the scheduling configuration.
func WithConfig(cfg Config) Option {
	return func(s *Sweeper) { s.cfg = cfg }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the sweeper logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

// WithInvoiceExpirer also expires overdue invoices on every run.
func WithInvoiceExpirer(e InvoiceExpirer) Option {
	return func(s *Sweeper) { s.invoices = e }
}

// WithRetrier also re-applies paid but unapplied invoices on every run.
func WithRetrier(r Retrier) Option {
	return func(s *Sweeper) { s.retrier = r }
}

// New creates a Sweeper over store. Panics if store is nil.
func New(store Store, opts ...Option) *Sweeper {
	if store == nil {
		panic("sweep: Store is required")
	}
	s := &Sweeper{
		store:  store,
		cfg:    DefaultConfig(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.Interval <= 0 {
		s.cfg.Interval = DefaultConfig().Interval
	}
	return s
}

// Start launches the ticker loop. Calling Start on a running sweeper does nothing.
// The loop stops when ctx is done or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.startedAt = s.now().UTC()

	go s.loop(loopCtx, s.done)

	s.logger.InfoContext(ctx, "sweeper started", slog.Duration("interval", s.cfg.Interval))
}

// Stop ends the loop and waits for it to exit. It is safe to call more than once.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if s.cfg.RunOnStart {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	if s.inFlight.Load() {
		s.metrics.skipped()
		s.logger.DebugContext(ctx, "sweep tick skipped, run in flight")
		return
	}
	if _, err := s.RunNow(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.ErrorContext(ctx, "sweep run failed", logger.Error(err))
	}
}

// RunNow executes a run immediately. A call made while another run is in
// flight waits for that run and returns its report.
func (s *Sweeper) RunNow(ctx context.Context) (Report, error) {
	v, err, _ := s.flight.Do(flightKey, func() (any, error) {
		return s.run(ctx)
	})
	report, _ := v.(Report)
	return report, err
}

func (s *Sweeper) run(ctx context.Context) (Report, error) {
	s.inFlight.Store(true)
	defer s.inFlight.Store(false)

	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	now := s.now().UTC()
	report := Report{StartedAt: now}

	// The subtasks touch disjoint fields, and a failure in one must not stop the other.
	var g errgroup.Group
	g.Go(func() error { return s.hideExpired(ctx, now, &report) })
	g.Go(func() error { return s.archiveUpgrades(ctx, now, &report) })
	if s.invoices != nil {
		g.Go(func() error {
			n, err := s.invoices.ExpireOverdue(ctx)
			report.ExpiredInvoices = n
			return err
		})
	}
	err := g.Wait()

	// applying paid invoices can make a profile visible again, so it runs after hiding
	if s.retrier != nil && ctx.Err() == nil {
		rr, rerr := s.retrier.RetryUnapplied(ctx)
		report.Reapplied = rr.Applied
		err = errors.Join(err, rerr)
	}

	report.FinishedAt = s.now().UTC()
	if err != nil {
		report.Err = err.Error()
	}

	s.runs.Add(1)
	s.metrics.observe(report)
	s.mu.Lock()
	last := report
	s.last = &last
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "sweep finished",
		slog.Int("hidden", report.Hidden),
		slog.Int("hide_failed", report.HideFailed),
		slog.Int("archived", report.Archived),
		slog.Int("archive_failed", report.ArchiveFailed),
		slog.Int("expired_invoices", report.ExpiredInvoices),
		slog.Int("reapplied", report.Reapplied),
		slog.Duration("duration", report.Duration()),
	)
	return report, err
}

func (s *Sweeper) hideExpired(ctx context.Context, now time.Time, report *Report) error {
	ids, err := s.store.ExpiredVisibleIDs(ctx, now)
	if err != nil {
		return errors.Join(errors.New("list expired visible profiles"), err)
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		hidden, err := s.store.HideExpired(ctx, id, now)
		if err != nil {
			report.HideFailed++
			s.logger.WarnContext(ctx, "hide expired profile failed",
				logger.ProfileID(id),
				logger.Error(err),
			)
			continue
		}
		if hidden {
			report.Hidden++
		}
	}
	return nil
}

func (s *Sweeper) archiveUpgrades(ctx context.Context, now time.Time, report *Report) error {
	ids, err := s.store.ExpiredUpgradeIDs(ctx, now)
	if err != nil {
		return errors.Join(errors.New("list profiles with expired upgrades"), err)
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.store.ArchiveExpiredUpgrades(ctx, id, now)
		if err != nil {
			report.ArchiveFailed++
			s.logger.WarnContext(ctx, "archive expired upgrades failed",
				logger.ProfileID(id),
				logger.Error(err),
			)
			continue
		}
		if n > 0 {
			report.Archived += n
			report.ArchivedProfiles++
		}
	}
	return nil
}

// Status returns the lifecycle snapshot.
func (s *Sweeper) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:  s.cancel != nil,
		InFlight: s.inFlight.Load(),
		Interval: s.cfg.Interval,
		Runs:     s.runs.Load(),
	}
	if st.Running {
		started := s.startedAt
		st.StartedAt = &started
	}
	if s.last != nil {
		last := *s.last
		st.LastRun = &last
	}
	return st
}

// Stats counts the profiles the next run would touch.
func (s *Sweeper) Stats(ctx context.Context) (Stats, error) {
	now := s.now().UTC()

	var hide, archive []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		hide, err = s.store.ExpiredVisibleIDs(gctx, now)
		return err
	})
	g.Go(func() (err error) {
		archive, err = s.store.ExpiredUpgradeIDs(gctx, now)
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, errors.Join(errors.New("sweep stats"), err)
	}

	stats := Stats{PendingHide: len(hide), PendingArchive: len(archive)}
	s.mu.Lock()
	if s.last != nil {
		last := *s.last
		stats.LastRun = &last
	}
	s.mu.Unlock()
	return stats, nil
}
