package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

const outcomeOK = "ok"

// SessionMetrics records latency and outcome of item session operations.
type SessionMetrics struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
}

// NewSessionMetrics registers the session metrics on the provided registerer.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	if reg == nil {
		return &SessionMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orderflow_session_operation_duration_seconds",
		Help:    "Duration of item session operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_session_operations_total",
		Help: "Item session operations by outcome.",
	}, []string{"operation", "outcome"})
	reg.MustRegister(duration, total)
	return &SessionMetrics{duration: duration, total: total}
}

// Observe records one finished operation. The outcome label is "ok" or the
// lower-cased error code.
func (m *SessionMetrics) Observe(operation string, started time.Time, err error) {
	if m == nil || m.duration == nil {
		return
	}
	op := normalizeLabel(operation)
	m.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	m.total.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return outcomeOK
	}
	return strings.ToLower(string(pkgerrors.CodeOf(err)))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
