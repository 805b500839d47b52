package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "proposalbot"

// Command outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeNotFound     = "not_found"
	OutcomeParseError   = "parse_error"
	OutcomeStorageError = "storage_error"
	OutcomeConstraint   = "storage_constraint"
	OutcomePanic        = "panic"
)

// Metrics groups the collectors for command processing. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	commands *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
	replies  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands processed, by command and outcome.",
		}, []string{"command", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent executing a command, store call included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "commands_inflight",
			Help:      "Commands currently being processed.",
		}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reply_failures_total",
			Help:      "Replies the transport failed to deliver.",
		}, []string{"transport"}),
	}
	if reg != nil {
		reg.MustRegister(m.commands, m.duration, m.inflight, m.replies)
	}
	return m
}

// ObserveCommand records one executed command.
func (m *Metrics) ObserveCommand(command, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, outcome).Inc()
	m.duration.WithLabelValues(command).Observe(elapsed.Seconds())
}

// Begin marks a command as in flight and returns the matching end func.
func (m *Metrics) Begin() func() {
	if m == nil {
		return func() {}
	}
	m.inflight.Inc()
	return m.inflight.Dec
}

// ReplyFailed counts an undeliverable reply.
func (m *Metrics) ReplyFailed(transport string) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(transport).Inc()
}
