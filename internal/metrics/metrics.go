// Package metrics exposes Prometheus collectors fed by engine transitions.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tinytelemetry/countdown/internal/model"
)

const (
	namespace = "countdown"
	subsystem = "timer"
)

// Metrics holds the timer collectors.
type Metrics struct {
	runsStarted prometheus.Counter
	runsEnded   *prometheus.CounterVec
	ticks       prometheus.Counter
	remaining   prometheus.Gauge
	running     prometheus.Gauge

	mu     sync.Mutex
	cancel func()
}

// MustNewMetrics registers the timer collectors with reg and panics on
// conflicting registrations. A nil reg uses the default registerer.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runs_started_total",
			Help:      "Countdown runs started.",
		}),
		runsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runs_ended_total",
			Help:      "Countdown runs ended, by outcome.",
		}, []string{"outcome"}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ticks_total",
			Help:      "Ticks applied to a running countdown.",
		}),
		remaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "remaining_seconds",
			Help:      "Seconds left in the current run, 0 when idle.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "running",
			Help:      "1 while a countdown is running.",
		}),
	}
	reg.MustRegister(m.runsStarted, m.runsEnded, m.ticks, m.remaining, m.running)

	// Pre-create both outcome series so they export as zero.
	m.runsEnded.WithLabelValues(string(model.OutcomeCompleted))
	m.runsEnded.WithLabelValues(string(model.OutcomeStopped))
	return m
}

// Attach starts observing src.
func (m *Metrics) Attach(src model.TimerWatcher) {
	cancel := src.Watch(m.Observe)

	m.mu.Lock()
	prev := m.cancel
	m.cancel = cancel
	m.mu.Unlock()

	if prev != nil {
		prev()
	}
}

// Detach stops observing.
func (m *Metrics) Detach() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Observe records one transition.
func (m *Metrics) Observe(t model.Transition) {
	if m == nil {
		return
	}
	switch t.Cause {
	case model.CauseStart:
		m.runsStarted.Inc()
	case model.CauseTick:
		m.ticks.Inc()
	case model.CauseFinish:
		m.ticks.Inc()
		m.runsEnded.WithLabelValues(string(model.OutcomeCompleted)).Inc()
	case model.CauseStop:
		if t.From.IsRunning() {
			m.runsEnded.WithLabelValues(string(model.OutcomeStopped)).Inc()
		}
	}

	if t.To.IsRunning() {
		m.running.Set(1)
		m.remaining.Set(float64(t.To.RemainingSeconds))
	} else {
		m.running.Set(0)
		m.remaining.Set(0)
	}
}
