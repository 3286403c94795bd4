package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics counts publisher outcomes per event type.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	dead      *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "published_total",
		Help:      "Outbox events delivered to Pub/Sub.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "publish_failures_total",
		Help:      "Retryable outbox publish failures.",
	}, []string{"event_type"})
	dead := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "dead_lettered_total",
		Help:      "Outbox events moved to the DLQ.",
	}, []string{"event_type", "reason"})
	reg.MustRegister(published, failed, dead)
	return &OutboxMetrics{published: published, failed: failed, dead: dead}
}

func (m *OutboxMetrics) IncPublished(eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncDeadLettered(eventType, reason string) {
	if m == nil || m.dead == nil {
		return
	}
	m.dead.WithLabelValues(normalizeLabel(eventType), normalizeLabel(reason)).Inc()
}
