// Package metrics exposes prometheus collectors for fork channel traffic.
//
// A nil *Metrics is valid and records nothing, so transports call it
// unconditionally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors of a fork channel.
type Metrics struct {
	commandsSent      *prometheus.CounterVec
	commandBytes      *prometheus.CounterVec
	partialWrites     *prometheus.CounterVec
	eventsReceived    *prometheus.CounterVec
	connectionsAccept prometheus.Counter
	acceptFailures    prometheus.Counter
	workerExits       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests usually want.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		commandsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forkchannel_commands_sent_total",
				Help: "Total number of command frames fully written to a worker",
			},
			[]string{"transport", "opcode"},
		),
		commandBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forkchannel_command_bytes_total",
				Help: "Total number of command frame bytes written to a worker",
			},
			[]string{"transport"},
		),
		partialWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forkchannel_partial_writes_total",
				Help: "Total number of short writes that had to be retried",
			},
			[]string{"transport"},
		),
		eventsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forkchannel_events_received_total",
				Help: "Total number of event lines delivered to the event handler",
			},
			[]string{"transport"},
		),
		connectionsAccept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "forkchannel_connections_accepted_total",
				Help: "Total number of worker connections accepted",
			},
		),
		acceptFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "forkchannel_accept_failures_total",
				Help: "Total number of failed worker connection accepts",
			},
		),
		workerExits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forkchannel_worker_exits_total",
				Help: "Total number of worker terminations by outcome",
			},
			[]string{"transport", "outcome"},
		),
	}

	if reg != nil {
		for _, c := range m.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.commandsSent,
		m.commandBytes,
		m.partialWrites,
		m.eventsReceived,
		m.connectionsAccept,
		m.acceptFailures,
		m.workerExits,
	}
}

// CommandSent records one fully written frame of n bytes.
func (m *Metrics) CommandSent(transport, opcode string, n int) {
	if m == nil {
		return
	}

	m.commandsSent.WithLabelValues(transport, opcode).Inc()
	m.commandBytes.WithLabelValues(transport).Add(float64(n))
}

// PartialWrite records a short write.
func (m *Metrics) PartialWrite(transport string) {
	if m == nil {
		return
	}

	m.partialWrites.WithLabelValues(transport).Inc()
}

// EventReceived records one delivered event line.
func (m *Metrics) EventReceived(transport string) {
	if m == nil {
		return
	}

	m.eventsReceived.WithLabelValues(transport).Inc()
}

// ConnectionAccepted records an accepted worker connection.
func (m *Metrics) ConnectionAccepted() {
	if m == nil {
		return
	}

	m.connectionsAccept.Inc()
}

// AcceptFailed records a failed accept.
func (m *Metrics) AcceptFailed() {
	if m == nil {
		return
	}

	m.acceptFailures.Inc()
}

// WorkerExited records a worker termination. Outcome is "success", "failure"
// or "error".
func (m *Metrics) WorkerExited(transport string, exitCode int, err error) {
	if m == nil {
		return
	}

	outcome := "success"

	switch {
	case err != nil:
		outcome = "error"
	case exitCode != 0:
		outcome = "failure"
	}

	m.workerExits.WithLabelValues(transport, outcome).Inc()
}
