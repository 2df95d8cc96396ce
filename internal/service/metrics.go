package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campuskit/timetable-api/internal/models"
)

// Metrics collects scheduling and HTTP counters on a private registry so
// tests can build isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	placements   *prometheus.CounterVec
	generator    *prometheus.CounterVec
	claims       *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		placements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timetable",
			Name:      "placements_total",
			Help:      "Placement attempts by outcome and conflict reason.",
		}, []string{"outcome", "reason"}),
		generator: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timetable",
			Name:      "generator_placements_total",
			Help:      "Generator placement outcomes.",
		}, []string{"outcome"}),
		claims: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timetable",
			Name:      "extra_slot_claims_total",
			Help:      "Extra slot claim attempts by outcome.",
		}, []string{"outcome"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "timetable",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) PlacementAccepted() {
	m.placements.WithLabelValues("accepted", "").Inc()
}

func (m *Metrics) PlacementRejected(reason models.ConflictReason) {
	m.placements.WithLabelValues("rejected", string(reason)).Inc()
}

func (m *Metrics) GeneratorPlaced() {
	m.generator.WithLabelValues("created").Inc()
}

func (m *Metrics) GeneratorSkipped() {
	m.generator.WithLabelValues("skipped").Inc()
}

func (m *Metrics) ClaimWon() {
	m.claims.WithLabelValues("won").Inc()
}

func (m *Metrics) ClaimLost() {
	m.claims.WithLabelValues("lost").Inc()
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request latency per route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpDuration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}
