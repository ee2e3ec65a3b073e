package prometheus

import (
	"strconv"
	"time"

	"github.com/marmos91/mdsessiond/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// sessionMapMetrics is the Prometheus implementation of metrics.SessionMapMetrics.
type sessionMapMetrics struct {
	sessionCount      *prometheus.GaugeVec
	dirtyCount        *prometheus.GaugeVec
	nullCount         *prometheus.GaugeVec
	versionLineage    *prometheus.GaugeVec
	saveLatency       *prometheus.HistogramVec
	preemptiveFlushes *prometheus.CounterVec
	saveErrors        *prometheus.CounterVec
	loads             *prometheus.CounterVec
}

// NewSessionMapMetrics creates a new Prometheus-backed Session Map metrics
// instance. Returns nil if metrics are not enabled (InitRegistry not
// called), following the badgerMetrics pattern.
func NewSessionMapMetrics() *sessionMapMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &sessionMapMetrics{
		sessionCount: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mdsessiond_sessions",
				Help: "Number of client sessions by rank and state.",
			},
			[]string{"rank", "state"},
		),
		dirtyCount: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mdsessiond_dirty_sessions",
				Help: "Number of sessions pending the next save.",
			},
			[]string{"rank"},
		),
		nullCount: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mdsessiond_null_sessions",
				Help: "Number of removed sessions pending an OMAP key removal.",
			},
			[]string{"rank"},
		),
		versionLineage: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mdsessiond_version",
				Help: "Session Map version counters.",
			},
			[]string{"rank", "counter"},
		),
		saveLatency: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mdsessiond_save_duration_seconds",
				Help:    "Time from save submission to commit.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"rank"},
		),
		preemptiveFlushes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdsessiond_preemptive_flushes_total",
				Help: "Saves triggered by the dirty set reaching its cap.",
			},
			[]string{"rank"},
		),
		saveErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdsessiond_save_errors_total",
				Help: "Saves whose compound operation failed.",
			},
			[]string{"rank"},
		),
		loads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdsessiond_loads_total",
				Help: "Completed loads, by whether the source object was legacy-format.",
			},
			[]string{"rank", "legacy"},
		),
	}
}

func (m *sessionMapMetrics) SetSessionCount(rank int, state string, n int) {
	m.sessionCount.WithLabelValues(rankLabel(rank), state).Set(float64(n))
}

func (m *sessionMapMetrics) SetDirtyCount(rank int, n int) {
	m.dirtyCount.WithLabelValues(rankLabel(rank)).Set(float64(n))
}

func (m *sessionMapMetrics) SetNullCount(rank int, n int) {
	m.nullCount.WithLabelValues(rankLabel(rank)).Set(float64(n))
}

func (m *sessionMapMetrics) SetVersionLineage(rank int, version, projected, committing, committed uint64) {
	r := rankLabel(rank)
	m.versionLineage.WithLabelValues(r, "version").Set(float64(version))
	m.versionLineage.WithLabelValues(r, "projected").Set(float64(projected))
	m.versionLineage.WithLabelValues(r, "committing").Set(float64(committing))
	m.versionLineage.WithLabelValues(r, "committed").Set(float64(committed))
}

func (m *sessionMapMetrics) ObserveSaveLatency(rank int, d time.Duration) {
	m.saveLatency.WithLabelValues(rankLabel(rank)).Observe(d.Seconds())
}

func (m *sessionMapMetrics) RecordPreemptiveFlush(rank int) {
	m.preemptiveFlushes.WithLabelValues(rankLabel(rank)).Inc()
}

func (m *sessionMapMetrics) RecordSaveError(rank int) {
	m.saveErrors.WithLabelValues(rankLabel(rank)).Inc()
}

func (m *sessionMapMetrics) RecordLoad(rank int, legacy bool) {
	m.loads.WithLabelValues(rankLabel(rank), strconv.FormatBool(legacy)).Inc()
}

func rankLabel(rank int) string {
	return strconv.Itoa(rank)
}
