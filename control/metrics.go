// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics for the reactor and the RPC layer, exported through
// Prometheus collectors. A nil *Metrics is valid and records nothing.

package control

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hioload_rpc"

// Call outcomes recorded by ObserveCall.
const (
	OutcomeOK             = "ok"
	OutcomeRemoteError    = "remote_error"
	OutcomeTimeout        = "timeout"
	OutcomeTransportError = "transport_error"
)

// Metrics holds the collectors shared by reactor and RPC components.
type Metrics struct {
	tasks      prometheus.Counter
	dispatched prometheus.Counter
	exceptions prometheus.Counter
	accepted   prometheus.Counter
	connects   prometheus.Counter
	frames     *prometheus.CounterVec
	calls      *prometheus.CounterVec
	latency    prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		tasks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reactor", Name: "tasks_total",
			Help: "Tasks executed on the reactor goroutine.",
		}),
		dispatched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reactor", Name: "ready_keys_total",
			Help: "Ready selection keys dispatched to listeners.",
		}),
		exceptions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reactor", Name: "exceptions_total",
			Help: "Errors raised while dispatching readiness events.",
		}),
		accepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reactor", Name: "accepted_total",
			Help: "Accepted stream connections.",
		}),
		connects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reactor", Name: "connects_total",
			Help: "Outbound connections established.",
		}),
		frames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "rpc", Name: "frames_total",
			Help: "Wire frames by direction.",
		}, []string{"direction"}),
		calls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "rpc", Name: "calls_total",
			Help: "Remote calls by outcome.",
		}, []string{"outcome"}),
		latency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "rpc", Name: "call_seconds",
			Help:    "Remote call latency.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
		}),
	}
}

func (m *Metrics) TaskExecuted() {
	if m != nil {
		m.tasks.Inc()
	}
}

func (m *Metrics) KeyDispatched() {
	if m != nil {
		m.dispatched.Inc()
	}
}

func (m *Metrics) Exception() {
	if m != nil {
		m.exceptions.Inc()
	}
}

func (m *Metrics) Accepted() {
	if m != nil {
		m.accepted.Inc()
	}
}

func (m *Metrics) Connected() {
	if m != nil {
		m.connects.Inc()
	}
}

// Frame counts one frame; direction is "in" or "out".
func (m *Metrics) Frame(direction string) {
	if m != nil {
		m.frames.WithLabelValues(direction).Inc()
	}
}

// ObserveCall records a finished remote call.
func (m *Metrics) ObserveCall(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(outcome).Inc()
	m.latency.Observe(elapsed.Seconds())
}

// Calls exposes the outcome counter, mostly for tests.
func (m *Metrics) Calls() *prometheus.CounterVec {
	return m.calls
}

// Tasks exposes the reactor task counter.
func (m *Metrics) Tasks() prometheus.Counter {
	return m.tasks
}
