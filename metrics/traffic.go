package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	trafficLabels        = []string{"message_type", "status"}
	trafficLatencyLabels = []string{"message_type"}
)

// MessageMetrics instruments a message.MessageSender/message.MessageReceiver
// pair with a counter+summary shape: a CounterVec of outcomes and a
// SummaryVec of latencies.
type MessageMetrics struct {
	// Messages counts sends and handler invocations, partitioned by
	// message type id and outcome ("ok", "clean_error", "runtime_error").
	Messages *prometheus.CounterVec

	// Latencies times a send round-trip or a handler invocation,
	// partitioned by message type id.
	Latencies *prometheus.SummaryVec
}

// NewMessageMetrics registers Prometheus instrumentation for a
// message-passing endpoint named name (distinct names let a process
// host more than one protocol instance without metric collisions).
func NewMessageMetrics(name string) *MessageMetrics {
	m := &MessageMetrics{
		Messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_messages_total", name),
				Help: "How many messages were sent or handled, partitioned by message type and outcome.",
			},
			trafficLabels,
		),
		Latencies: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name: fmt.Sprintf("%s_message_durations", name),
				Help: "How long a send round-trip or handler invocation took, partitioned by message type.",
			},
			trafficLatencyLabels,
		),
	}

	prometheus.MustRegister(m.Messages)
	prometheus.MustRegister(m.Latencies)
	return m
}

// Counter returns the counter for one (message_type, status) pair.
func (m *MessageMetrics) Counter(messageType int, status string) prometheus.Counter {
	return m.Messages.WithLabelValues(fmt.Sprintf("%d", messageType), status)
}

// Timer starts a latency timer for messageType; call ObserveDuration on
// the result when the operation completes.
func (m *MessageMetrics) Timer(messageType int) *prometheus.Timer {
	return prometheus.NewTimer(m.Latencies.WithLabelValues(fmt.Sprintf("%d", messageType)))
}
