package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics counts outbox publisher results per event type.
type OutboxMetrics struct {
	results *prometheus.CounterVec
}

// NewOutboxMetrics registers the outbox metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_outbox_events_total",
		Help: "Outbox events by event type and result (queued, published, retry, dead_lettered).",
	}, []string{"event_type", "result"})
	reg.MustRegister(results)
	return &OutboxMetrics{results: results}
}

// IncQueued counts an event written to the outbox by a producer.
func (m *OutboxMetrics) IncQueued(eventType string) { m.inc(eventType, "queued") }

// IncPublished counts a successfully published event.
func (m *OutboxMetrics) IncPublished(eventType string) { m.inc(eventType, "published") }

// IncRetry counts a failed attempt that will be retried.
func (m *OutboxMetrics) IncRetry(eventType string) { m.inc(eventType, "retry") }

// IncDeadLettered counts an event moved to the DLQ.
func (m *OutboxMetrics) IncDeadLettered(eventType string) { m.inc(eventType, "dead_lettered") }

func (m *OutboxMetrics) inc(eventType, result string) {
	if m == nil || m.results == nil {
		return
	}
	m.results.WithLabelValues(normalizeLabel(eventType), result).Inc()
}
