// Package metrics holds the prometheus collectors for planning and write-back.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "writeback"

// Metrics is the set of collectors registered on one registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	plannedChanges *prometheus.CounterVec
	planErrors     *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	fileWrites     *prometheus.CounterVec
	applyDuration  *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		plannedChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "planned_changes_total",
			Help:      "Planned file changes by action",
		}, []string{"action"}),
		planErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_errors_total",
			Help:      "Pages rejected during planning by kind",
		}, []string{"kind"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Review session status transitions",
		}, []string{"from", "to"}),
		fileWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_writes_total",
			Help:      "Destination file writes by provider and outcome",
		}, []string{"provider", "outcome"}),
		applyDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "apply_duration_seconds",
			Help:      "Apply call latency by outcome",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// PlannedChange counts one planned change
func (m *Metrics) PlannedChange(action string) {
	if m == nil {
		return
	}
	m.plannedChanges.WithLabelValues(action).Inc()
}

// PlanError counts rejected pages, kind is "path" or "block"
func (m *Metrics) PlanError(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.planErrors.WithLabelValues(kind).Add(float64(n))
}

// Transition counts a session status change. from is empty for creation.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	if from == "" {
		from = "none"
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// FileWrite counts one file outcome during apply: written, skipped or failed
func (m *Metrics) FileWrite(provider, outcome string) {
	if m == nil {
		return
	}
	m.fileWrites.WithLabelValues(provider, outcome).Inc()
}

// ObserveApply records the latency of an apply call
func (m *Metrics) ObserveApply(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.applyDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// GinMiddleware records request counts and latency keyed by the matched route
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
