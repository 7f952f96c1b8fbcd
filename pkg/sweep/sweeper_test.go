package sweep_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackira01/scort-web-site-sub002/pkg/payment"
	"github.com/jackira01/scort-web-site-sub002/pkg/profile"
	"github.com/jackira01/scort-web-site-sub002/pkg/sweep"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func seed(t *testing.T) *profile.MemoryStore {
	t.Helper()
	store := profile.NewMemoryStore()
	ctx := context.Background()

	profiles := []*profile.Profile{
		{
			ID: "expired", UserID: "u1", IsActive: true, Visible: true,
			Plan: &profile.PlanAssignment{PlanCode: "ORO", ExpiresAt: now.Add(-time.Hour)},
		},
		{
			ID: "live", UserID: "u1", IsActive: true, Visible: true,
			Plan: &profile.PlanAssignment{PlanCode: "ORO", ExpiresAt: now.Add(time.Hour)},
			Upgrades: []profile.UpgradeGrant{
				{Code: "DESTACADO", StartAt: now.Add(-48 * time.Hour), EndAt: now.Add(-24 * time.Hour)},
				{Code: "IMPULSO", StartAt: now.Add(-time.Hour), EndAt: now.Add(time.Hour)},
			},
		},
		{
			ID: "inactive", UserID: "u2", IsActive: false, Visible: true,
			Plan: &profile.PlanAssignment{PlanCode: "ZAFIRO", ExpiresAt: now.Add(-time.Hour)},
			Upgrades: []profile.UpgradeGrant{
				{Code: "DESTACADO", StartAt: now.Add(-48 * time.Hour), EndAt: now},
			},
		},
	}
	for _, p := range profiles {
		require.NoError(t, store.Save(ctx, p))
	}
	return store
}

func TestSweeper_RunNow(t *testing.T) {
	t.Parallel()

	store := seed(t)
	s := sweep.New(store, sweep.WithClock(clock), sweep.WithLogger(discard()))

	report, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Hidden)
	assert.Equal(t, 2, report.Archived)
	assert.Equal(t, 2, report.ArchivedProfiles)
	assert.Zero(t, report.HideFailed)
	assert.Zero(t, report.ArchiveFailed)
	assert.Empty(t, report.Err)

	ctx := context.Background()
	expired, err := store.Get(ctx, "expired")
	require.NoError(t, err)
	assert.False(t, expired.Visible)
	assert.True(t, expired.IsActive)

	live, err := store.Get(ctx, "live")
	require.NoError(t, err)
	assert.True(t, live.Visible)
	require.Len(t, live.Upgrades, 1)
	assert.Equal(t, "IMPULSO", live.Upgrades[0].Code)
	require.Len(t, live.UpgradeHistory, 1)
	assert.Equal(t, "DESTACADO", live.UpgradeHistory[0].Code)
	require.NotNil(t, live.UpgradeHistory[0].ExpiredAt)
	assert.Equal(t, now, *live.UpgradeHistory[0].ExpiredAt)

	inactive, err := store.Get(ctx, "inactive")
	require.NoError(t, err)
	assert.True(t, inactive.Visible, "inactive profiles are not hidden by the sweep")
	assert.Empty(t, inactive.Upgrades)
}

func TestSweeper_Idempotent(t *testing.T) {
	t.Parallel()

	store := seed(t)
	s := sweep.New(store, sweep.WithClock(clock), sweep.WithLogger(discard()))
	ctx := context.Background()

	_, err := s.RunNow(ctx)
	require.NoError(t, err)
	before, err := store.List(ctx, profile.Query{})
	require.NoError(t, err)

	report, err := s.RunNow(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Hidden)
	assert.Zero(t, report.Archived)

	after, err := store.List(ctx, profile.Query{})
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

type failingStore struct {
	*profile.MemoryStore
	hideErr error
}

func (f failingStore) HideExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	if f.hideErr != nil {
		return false, f.hideErr
	}
	return f.MemoryStore.HideExpired(ctx, id, now)
}

func TestSweeper_FailuresAreCounted(t *testing.T) {
	t.Parallel()

	store := failingStore{MemoryStore: seed(t), hideErr: errors.New("write conflict")}
	s := sweep.New(store, sweep.WithClock(clock), sweep.WithLogger(discard()))

	report, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.HideFailed)
	assert.Zero(t, report.Hidden)
	assert.Equal(t, 2, report.Archived, "archival continues when hiding fails")
}

type blockingStore struct {
	*profile.MemoryStore
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingStore) ExpiredVisibleIDs(ctx context.Context, now time.Time) ([]string, error) {
	if b.calls.Add(1) == 1 {
		close(b.entered)
	}
	<-b.release
	return b.MemoryStore.ExpiredVisibleIDs(ctx, now)
}

func TestSweeper_RunNowSingleFlight(t *testing.T) {
	t.Parallel()

	store := &blockingStore{
		MemoryStore: seed(t),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	s := sweep.New(store, sweep.WithClock(clock), sweep.WithLogger(discard()))
	ctx := context.Background()

	var wg sync.WaitGroup
	reports := make([]sweep.Report, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		reports[0], _ = s.RunNow(ctx)
	}()
	<-store.entered
	assert.True(t, s.Status().InFlight)

	wg.Add(1)
	go func() {
		defer wg.Done()
		reports[1], _ = s.RunNow(ctx)
	}()
	// let the second caller reach the flight group before the first run ends
	time.Sleep(20 * time.Millisecond)
	close(store.release)
	wg.Wait()

	assert.Equal(t, int32(1), store.calls.Load())
	assert.Equal(t, reports[0], reports[1])
	assert.Equal(t, int64(1), s.Status().Runs)
}

func TestSweeper_StartStop(t *testing.T) {
	t.Parallel()

	store := seed(t)
	s := sweep.New(store,
		sweep.WithClock(clock),
		sweep.WithLogger(discard()),
		sweep.WithConfig(sweep.Config{Interval: time.Hour, RunOnStart: true}),
	)

	assert.False(t, s.Status().Running)

	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx)

	require.Eventually(t, func() bool {
		return s.Status().LastRun != nil
	}, time.Second, 5*time.Millisecond)

	st := s.Status()
	assert.True(t, st.Running)
	require.NotNil(t, st.StartedAt)
	assert.Equal(t, now, *st.StartedAt)
	assert.Equal(t, time.Hour, st.Interval)
	assert.Equal(t, int64(1), st.Runs, "second Start must not launch another loop")
	assert.Equal(t, 1, st.LastRun.Hidden)

	s.Stop()
	s.Stop()
	st = s.Status()
	assert.False(t, st.Running)
	assert.Nil(t, st.StartedAt)
	assert.NotNil(t, st.LastRun)
}

func TestSweeper_StopsWithContext(t *testing.T) {
	t.Parallel()

	s := sweep.New(seed(t),
		sweep.WithClock(clock),
		sweep.WithLogger(discard()),
		sweep.WithConfig(sweep.Config{Interval: 5 * time.Millisecond}),
	)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return s.Status().Runs > 0 }, time.Second, 5*time.Millisecond)

	cancel()
	s.Stop()
	runs := s.Status().Runs
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, runs, s.Status().Runs)
}

func TestSweeper_Stats(t *testing.T) {
	t.Parallel()

	s := sweep.New(seed(t), sweep.WithClock(clock), sweep.WithLogger(discard()))
	ctx := context.Background()

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PendingHide)
	assert.Equal(t, 2, stats.PendingArchive)
	assert.Nil(t, stats.LastRun)

	_, err = s.RunNow(ctx)
	require.NoError(t, err)

	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.PendingHide)
	assert.Zero(t, stats.PendingArchive)
	require.NotNil(t, stats.LastRun)
}

type invoiceTasks struct {
	expired int
	retry   payment.RetryReport
	err     error
}

func (i invoiceTasks) ExpireOverdue(context.Context) (int, error) { return i.expired, nil }

func (i invoiceTasks) RetryUnapplied(context.Context) (payment.RetryReport, error) {
	return i.retry, i.err
}

func TestSweeper_InvoiceTasks(t *testing.T) {
	t.Parallel()

	tasks := invoiceTasks{expired: 3, retry: payment.RetryReport{Applied: 2}}
	s := sweep.New(seed(t),
		sweep.WithClock(clock),
		sweep.WithLogger(discard()),
		sweep.WithInvoiceExpirer(tasks),
		sweep.WithRetrier(tasks),
	)

	report, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.ExpiredInvoices)
	assert.Equal(t, 2, report.Reapplied)

	failing := invoiceTasks{err: errors.New("invoice store down")}
	s = sweep.New(seed(t), sweep.WithClock(clock), sweep.WithLogger(discard()), sweep.WithRetrier(failing))
	report, err = s.RunNow(context.Background())
	require.Error(t, err)
	assert.Contains(t, report.Err, "invoice store down")
	assert.Equal(t, 1, report.Hidden)
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s := sweep.New(seed(t),
		sweep.WithClock(clock),
		sweep.WithLogger(discard()),
		sweep.WithMetrics(sweep.NewMetrics(reg)),
	)
	_, err := s.RunNow(context.Background())
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			if c := m.GetCounter(); c != nil {
				values[f.GetName()] += c.GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, values["entitlements_sweep_runs_total"])
	assert.Equal(t, 1.0, values["entitlements_sweep_hidden_profiles_total"])
	assert.Equal(t, 2.0, values["entitlements_sweep_archived_upgrades_total"])

	failures, err := testutil.GatherAndCount(reg, "entitlements_sweep_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 2, failures, "one series per task")
}
