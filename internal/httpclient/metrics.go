package httpclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation results recorded by Metrics.
const (
	ResultRemapped    = "remapped"
	ResultUnchanged   = "unchanged"
	ResultSkipped     = "skipped"
	ResultEmpty       = "empty"
	ResultPassthrough = "passthrough"
)

// Metrics contains Prometheus metrics for remap operations. A nil
// *Metrics records nothing.
type Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	breakerState      *prometheus.GaugeVec
}

// NewMetrics creates remap metrics registered with reg. A nil reg leaves
// the collectors unregistered.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "fieldremap"
	}
	factory := promauto.With(reg)

	return &Metrics{
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "remap",
				Name:      "operations_total",
				Help:      "Total number of remap hook invocations",
			},
			[]string{"direction", "result"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "remap",
				Name:      "duration_seconds",
				Help:      "Duration of body remapping in seconds",
				Buckets: []float64{
					.00001, .00005, .0001, .0005,
					.001, .005, .01, .05, .1,
				},
			},
			[]string{"direction"},
		),
		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
	}
}

// Init pre-populates label combinations so series appear before traffic.
func (m *Metrics) Init() {
	if m == nil {
		return
	}
	for _, dir := range []Direction{DirectionOutbound, DirectionInbound} {
		for _, result := range []string{
			ResultRemapped, ResultUnchanged, ResultSkipped, ResultEmpty, ResultPassthrough,
		} {
			m.operationsTotal.WithLabelValues(string(dir), result)
		}
		m.operationDuration.WithLabelValues(string(dir))
	}
}

// RecordOperation records a hook invocation.
func (m *Metrics) RecordOperation(dir Direction, result string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(string(dir), result).Inc()
}

// ObserveDuration records the time spent remapping one body.
func (m *Metrics) ObserveDuration(dir Direction, d time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(string(dir)).Observe(d.Seconds())
}

// SetBreakerState records the state of a named circuit breaker.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(state))
}
