package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	backendCalls    *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	runs            *prometheus.CounterVec
	tripsProduced   prometheus.Gauge
	droppedMoves    *prometheus.CounterVec
	staleRuns       prometheus.Counter
	snapshots       prometheus.Counter
	clockTicks      prometheus.Counter
	httpRequests    *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		backendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_backend_calls_total",
			Help: "Backend calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "engine_backend_call_duration_seconds",
			Help:    "Histogram of backend call durations by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_orchestration_runs_total",
			Help: "Orchestration runs by fallback reason (none when trips were produced).",
		}, []string{"fallback"}),
		tripsProduced: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_scene_trips",
			Help: "Trips in the current scene.",
		}),
		droppedMoves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_dropped_moves_total",
			Help: "Moves that produced no trip, by reason.",
		}, []string{"reason"}),
		staleRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_stale_runs_discarded_total",
			Help: "Orchestration results discarded because a newer run had started.",
		}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_context_snapshots_total",
			Help: "Context snapshots published.",
		}),
		clockTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_clock_ticks_total",
			Help: "Playback clock ticks processed.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "status"}),
	}

	m.registry.MustRegister(
		m.backendCalls,
		m.backendDuration,
		m.runs,
		m.tripsProduced,
		m.droppedMoves,
		m.staleRuns,
		m.snapshots,
		m.clockTicks,
		m.httpRequests,
		collectors.NewGoCollector(),
	)

	return m
}

// Handler exposes the registry for scraping
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveBackendCall records one backend call
func (m *Metrics) ObserveBackendCall(endpoint string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.backendCalls.WithLabelValues(endpoint, outcome).Inc()
	m.backendDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveRun records a completed orchestration run
func (m *Metrics) ObserveRun(fallback string, trips int) {
	if m == nil {
		return
	}
	if fallback == "" {
		fallback = "none"
	}
	m.runs.WithLabelValues(fallback).Inc()
	m.tripsProduced.Set(float64(trips))
}

// IncDroppedMove records a move that produced no trip
func (m *Metrics) IncDroppedMove(reason string) {
	if m == nil {
		return
	}
	m.droppedMoves.WithLabelValues(reason).Inc()
}

// IncStaleRun records a discarded stale result
func (m *Metrics) IncStaleRun() {
	if m == nil {
		return
	}
	m.staleRuns.Inc()
}

// IncSnapshot records a published context snapshot
func (m *Metrics) IncSnapshot() {
	if m == nil {
		return
	}
	m.snapshots.Inc()
}

// IncClockTick records a processed clock tick
func (m *Metrics) IncClockTick() {
	if m == nil {
		return
	}
	m.clockTicks.Inc()
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
