package sweep

import "github.com/prometheus/client_golang/prometheus"

// Metrics instruments sweep runs. A nil *Metrics records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	hidden   prometheus.Counter
	archived prometheus.Counter
	failures *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics creates the sweep collectors and registers them with reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "entitlements",
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Sweep runs by result (ok, error, skipped).",
		}, []string{"result"}),
		hidden: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "entitlements",
			Subsystem: "sweep",
			Name:      "hidden_profiles_total",
			Help:      "Profiles hidden because their plan expired.",
		}),
		archived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "entitlements",
			Subsystem: "sweep",
			Name:      "archived_upgrades_total",
			Help:      "Expired upgrade grants moved to history.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "entitlements",
			Subsystem: "sweep",
			Name:      "failures_total",
			Help:      "Per-profile failures by task.",
		}, []string{"task"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "entitlements",
			Subsystem: "sweep",
			Name:      "run_duration_seconds",
			Help:      "Duration of sweep runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.hidden, m.archived, m.failures, m.duration)
	}
	return m
}

func (m *Metrics) observe(r Report) {
	if m == nil {
		return
	}
	result := "ok"
	if r.Err != "" {
		result = "error"
	}
	m.runs.WithLabelValues(result).Inc()
	m.hidden.Add(float64(r.Hidden))
	m.archived.Add(float64(r.Archived))
	m.failures.WithLabelValues(taskHide).Add(float64(r.HideFailed))
	m.failures.WithLabelValues(taskArchive).Add(float64(r.ArchiveFailed))
	m.duration.Observe(r.FinishedAt.Sub(r.StartedAt).Seconds())
}

func (m *Metrics) skipped() {
	if m == nil {
		return
	}
	m.runs.WithLabelValues("skipped").Inc()
}
