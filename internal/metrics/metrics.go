// Package metrics exposes Prometheus collectors for chat turns, live
// conversations and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the studio.
type Metrics struct {
	registry *prometheus.Registry

	// Turn metrics
	TurnsTotal   *prometheus.CounterVec
	TurnDuration *prometheus.HistogramVec

	// Live metrics
	LiveTransitionsTotal *prometheus.CounterVec
	LiveRunsActive       prometheus.Gauge
	LiveAudioSeconds     prometheus.Counter

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	mu       sync.Mutex
	liveOpen int
}

// New creates a Metrics instance with every collector registered on a
// private registry, alongside the Go runtime and process collectors.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "vai_studio"
	}

	registry := prometheus.NewRegistry()

	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of chat turns by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	turnDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Chat turn duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"mode"},
	)

	liveTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_status_transitions_total",
			Help:      "Total number of live conversation status transitions",
		},
		[]string{"status"},
	)

	liveActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_runs_active",
			Help:      "Number of connected live conversations",
		},
	)

	liveAudio := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_audio_scheduled_seconds_total",
			Help:      "Total seconds of model audio scheduled for playback",
		},
	)

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
		},
		[]string{"route"},
	)

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		turnsTotal,
		turnDuration,
		liveTransitions,
		liveActive,
		liveAudio,
		requestsTotal,
		requestDuration,
	)

	return &Metrics{
		registry:             registry,
		TurnsTotal:           turnsTotal,
		TurnDuration:         turnDuration,
		LiveTransitionsTotal: liveTransitions,
		LiveRunsActive:       liveActive,
		LiveAudioSeconds:     liveAudio,
		RequestsTotal:        requestsTotal,
		RequestDuration:      requestDuration,
	}
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TurnFinished records a completed chat turn.
func (m *Metrics) TurnFinished(mode, outcome string, elapsed time.Duration) {
	m.TurnsTotal.WithLabelValues(mode, outcome).Inc()
	m.TurnDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// LiveStatus records a live status transition. The active gauge follows
// connected runs until they reach a terminal status.
func (m *Metrics) LiveStatus(status string) {
	m.LiveTransitionsTotal.WithLabelValues(status).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	switch status {
	case "connected":
		m.liveOpen++
	case "ended", "error":
		if m.liveOpen > 0 {
			m.liveOpen--
		}
	default:
		return
	}
	m.LiveRunsActive.Set(float64(m.liveOpen))
}

// AudioScheduled records seconds of model audio queued for playback.
func (m *Metrics) AudioScheduled(seconds float64) {
	if seconds > 0 {
		m.LiveAudioSeconds.Add(seconds)
	}
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(route string, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
