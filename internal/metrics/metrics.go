// Package metrics exposes Prometheus counters for auto-invite passes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	dispatches   *prometheus.CounterVec
	campaigns    *prometheus.CounterVec
	passDuration prometheus.Histogram
	lastPass     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autoinvite",
			Name:      "dispatches_total",
			Help:      "Recipient dispatch outcomes by message kind.",
		}, []string{"kind", "outcome"}),
		campaigns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autoinvite",
			Name:      "campaigns_total",
			Help:      "Campaigns processed per pass by result.",
		}, []string{"result"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "autoinvite",
			Name:      "pass_duration_seconds",
			Help:      "Wall time of a full pass.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		lastPass: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "autoinvite",
			Name:      "last_pass_timestamp_seconds",
			Help:      "Unix time the last pass finished.",
		}),
	}
	m.registry.MustRegister(m.dispatches, m.campaigns, m.passDuration, m.lastPass)
	return m
}

func (m *Metrics) ObserveDispatch(kind, outcome string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(kind, outcome).Inc()
}

// ObserveCampaign counts one campaign as "ok", "failed" or "skipped".
func (m *Metrics) ObserveCampaign(result string) {
	if m == nil {
		return
	}
	m.campaigns.WithLabelValues(result).Inc()
}

func (m *Metrics) ObservePass(started, finished time.Time) {
	if m == nil {
		return
	}
	m.passDuration.Observe(finished.Sub(started).Seconds())
	m.lastPass.Set(float64(finished.Unix()))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
