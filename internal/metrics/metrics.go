// Package metrics collects drive-loop counters on a private Prometheus
// registry. There is no HTTP exporter; the registry is written to a
// node_exporter textfile when a path is configured.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "xkeycursor"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	ticks           prometheus.Counter
	overruns        prometheus.Counter
	tickDuration    prometheus.Histogram
	events          *prometheus.CounterVec
	emitErrors      *prometheus.CounterVec
	boosts          prometheus.Counter
	sessions        prometheus.Counter
	sessionDuration prometheus.Histogram
	active          prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Number of drive loop ticks executed.",
		}),
		overruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_overruns_total",
			Help:      "Number of ticks whose body took longer than the tick period.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent in the tick body, excluding the residual sleep.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.0167, 0.033},
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Events written to the virtual pointer, by kind.",
		}, []string{"event"}),
		emitErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emit_errors_total",
			Help:      "Events the virtual pointer rejected, by kind.",
		}, []string{"event"}),
		boosts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boosts_total",
			Help:      "Number of fast re-presses that jumped to maximum speed.",
		}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Number of drive mode activations.",
		}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Length of drive mode sessions.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "drive_active",
			Help:      "1 while drive mode is engaged.",
		}),
	}
	m.registry.MustRegister(
		m.ticks,
		m.overruns,
		m.tickDuration,
		m.events,
		m.emitErrors,
		m.boosts,
		m.sessions,
		m.sessionDuration,
		m.active,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveTick(elapsed, period time.Duration) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(elapsed.Seconds())
	if elapsed > period {
		m.overruns.Inc()
	}
}

func (m *Metrics) Emitted(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) EmitFailed(kind string) {
	if m == nil {
		return
	}
	m.emitErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) Boost() {
	if m == nil {
		return
	}
	m.boosts.Inc()
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessions.Inc()
	m.active.Set(1)
}

func (m *Metrics) SessionEnded(d time.Duration) {
	if m == nil {
		return
	}
	m.active.Set(0)
	m.sessionDuration.Observe(d.Seconds())
}

// WriteTextfile atomically replaces path with the current metric values.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
