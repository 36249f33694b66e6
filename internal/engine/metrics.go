package engine

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/flagsweep/internal/ir"
)

const metricsNamespace = "flagsweep"

// Metrics exports scheduler activity to Prometheus.
//
// Collectors are registered on the Registerer passed to NewMetrics, never on
// the global default registry, so tests and several scenes in one process
// each get their own set. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ticks         prometheus.Counter
	sweeps        *prometheus.CounterVec
	ownersFlushed *prometheus.CounterVec
	flagsApplied  *prometheus.CounterVec
	sweepErrors   *prometheus.CounterVec
	pending       *prometheus.GaugeVec
	sweepDuration *prometheus.HistogramVec
}

// NewMetrics creates the scheduler collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Total scheduler ticks.",
		}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "scheduler",
			Name:      "sweeps_total",
			Help:      "Total priority sweeps run.",
		}, []string{"priority"}),
		ownersFlushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "scheduler",
			Name:      "owners_flushed_total",
			Help:      "Owners whose flags were cleared and applied.",
		}, []string{"priority"}),
		flagsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "scheduler",
			Name:      "flags_applied_total",
			Help:      "Active flags handed to ApplyRenderFlags.",
		}, []string{"priority"}),
		sweepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "scheduler",
			Name:      "sweep_errors_total",
			Help:      "Sweeps aborted by an owner or journal error.",
		}, []string{"priority", "code"}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "registry",
			Name:      "pending_owners",
			Help:      "Owners pending per priority after the last tick.",
		}, []string{"priority"}),
		sweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "scheduler",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of one priority sweep in seconds.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"priority"}),
	}

	collectors := []prometheus.Collector{
		m.ticks, m.sweeps, m.ownersFlushed, m.flagsApplied,
		m.sweepErrors, m.pending, m.sweepDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				return nil, errors.New("flagsweep metrics already registered on this registry")
			}
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeTick() {
	if m == nil {
		return
	}
	m.ticks.Inc()
}

func (m *Metrics) observeSweep(p ir.Priority, d time.Duration) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(p.String()).Inc()
	m.sweepDuration.WithLabelValues(p.String()).Observe(d.Seconds())
}

func (m *Metrics) observeFlush(p ir.Priority, flagCount int) {
	if m == nil {
		return
	}
	m.ownersFlushed.WithLabelValues(p.String()).Inc()
	m.flagsApplied.WithLabelValues(p.String()).Add(float64(flagCount))
}

func (m *Metrics) observeError(p ir.Priority, code RuntimeErrorCode) {
	if m == nil {
		return
	}
	m.sweepErrors.WithLabelValues(p.String(), string(code)).Inc()
}

func (m *Metrics) observePending(r *Registry, order []ir.Priority) {
	if m == nil {
		return
	}
	for _, p := range order {
		m.pending.WithLabelValues(p.String()).Set(float64(r.Len(p)))
	}
}
