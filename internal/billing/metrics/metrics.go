package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultSuccess = "success"
	resultError   = "error"

	compositeMerged      = "merged"
	compositePlaceholder = "placeholder"
)

// Metrics bundles billing run metrics.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	DownloadAttempts *prometheus.CounterVec
	DownloadsTotal   *prometheus.CounterVec
	CompositesTotal  *prometheus.CounterVec
	DispatchTotal    *prometheus.CounterVec
}

// New constructs metrics and registers them with reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_runs_total",
				Help: "Total billing runs by result",
			},
			[]string{"result"},
		),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "billing_run_duration_seconds",
			Help:    "Billing run duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		DownloadAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_download_attempts_total",
				Help: "Total document download attempts by result",
			},
			[]string{"result"},
		),
		DownloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_downloads_total",
				Help: "Total documents by final download result",
			},
			[]string{"result"},
		),
		CompositesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_composites_total",
				Help: "Total composite documents by kind",
			},
			[]string{"kind"},
		),
		DispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_dispatch_total",
				Help: "Total bundle dispatches by result",
			},
			[]string{"result"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.RunsTotal,
			m.RunDuration,
			m.DownloadAttempts,
			m.DownloadsTotal,
			m.CompositesTotal,
			m.DispatchTotal,
		)
	}
	return m
}

// ObserveDownloadAttempt records one fetch attempt.
func (m *Metrics) ObserveDownloadAttempt(ok bool) {
	if m == nil {
		return
	}
	m.DownloadAttempts.WithLabelValues(result(ok)).Inc()
}

// ObserveDownload records the final outcome of one document.
func (m *Metrics) ObserveDownload(ok bool) {
	if m == nil {
		return
	}
	m.DownloadsTotal.WithLabelValues(result(ok)).Inc()
}

// ObserveComposite records one produced composite.
func (m *Metrics) ObserveComposite(placeholder bool) {
	if m == nil {
		return
	}
	kind := compositeMerged
	if placeholder {
		kind = compositePlaceholder
	}
	m.CompositesTotal.WithLabelValues(kind).Inc()
}

// ObserveDispatch records one dispatch attempt.
func (m *Metrics) ObserveDispatch(ok bool) {
	if m == nil {
		return
	}
	m.DispatchTotal.WithLabelValues(result(ok)).Inc()
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(result(success)).Inc()
	m.RunDuration.Observe(duration.Seconds())
}

func result(ok bool) string {
	if ok {
		return resultSuccess
	}
	return resultError
}
