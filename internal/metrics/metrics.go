// Package metrics exposes Prometheus instruments for the credit ledger.
// A nil *Metrics is valid and records nothing, which keeps tests and
// tools free of registry plumbing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bigeye"

type Metrics struct {
	gatherer prometheus.Gatherer

	reservations    *prometheus.CounterVec
	reservedCredits prometheus.Counter
	finalizations   *prometheus.CounterVec
	refundedCredits *prometheus.CounterVec
	usedCredits     prometheus.Counter
	reclaimedJobs   prometheus.Counter
	topups          *prometheus.CounterVec
	toppedUpCredits *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New registers all instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers all instruments on reg and serves g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: g,
		reservations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "reservations_total",
			Help: "Reserve calls by result.",
		}, []string{"result"}),
		reservedCredits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reserved_credits_total",
			Help: "Credits locked by successful reservations.",
		}),
		finalizations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "finalizations_total",
			Help: "Finalize calls by outcome.",
		}, []string{"outcome"}),
		refundedCredits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "refunded_credits_total",
			Help: "Credits returned to users by source.",
		}, []string{"source"}),
		usedCredits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "used_credits_total",
			Help: "Credits consumed by completed jobs.",
		}),
		reclaimedJobs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reclaimed_jobs_total",
			Help: "Expired reservations refunded by the reclaimer.",
		}),
		topups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "topups_total",
			Help: "Top-up attempts by result.",
		}, []string{"result"}),
		toppedUpCredits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "topup_credits_total",
			Help: "Credits granted by top-ups, split into base and positive bonus.",
		}, []string{"kind"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) Reserve(result string, credits int64) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(result).Inc()
	if credits > 0 {
		m.reservedCredits.Add(float64(credits))
	}
}

func (m *Metrics) Finalize(outcome string, used, refunded int64) {
	if m == nil {
		return
	}
	m.finalizations.WithLabelValues(outcome).Inc()
	if used > 0 {
		m.usedCredits.Add(float64(used))
	}
	if refunded > 0 {
		m.refundedCredits.WithLabelValues("finalize").Add(float64(refunded))
	}
}

func (m *Metrics) Reclaim(jobs int, refunded int64) {
	if m == nil {
		return
	}
	m.reclaimedJobs.Add(float64(jobs))
	if refunded > 0 {
		m.refundedCredits.WithLabelValues("expiry").Add(float64(refunded))
	}
}

func (m *Metrics) AdminRefund(refunded int64) {
	if m == nil {
		return
	}
	m.refundedCredits.WithLabelValues("admin").Add(float64(refunded))
}

func (m *Metrics) TopUp(result string, base, bonus int64) {
	if m == nil {
		return
	}
	m.topups.WithLabelValues(result).Inc()
	if base > 0 {
		m.toppedUpCredits.WithLabelValues("base").Add(float64(base))
	}
	if bonus > 0 {
		m.toppedUpCredits.WithLabelValues("bonus").Add(float64(bonus))
	}
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
