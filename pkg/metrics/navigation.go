package metrics

import "github.com/prometheus/client_golang/prometheus"

// NavigationMetrics counts stage navigation events and swallowed persistence
// failures.
type NavigationMetrics struct {
	transitions     *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
}

// NewNavigationMetrics registers the navigation metrics on the provided registerer.
func NewNavigationMetrics(reg prometheus.Registerer) *NavigationMetrics {
	if reg == nil {
		return &NavigationMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_navigation_transitions_total",
		Help: "Stage navigation actions by kind.",
	}, []string{"action"})
	persistFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_navigation_persist_failures_total",
		Help: "Navigation state load/save failures.",
	}, []string{"op"})
	reg.MustRegister(transitions, persistFailures)
	return &NavigationMetrics{transitions: transitions, persistFailures: persistFailures}
}

// IncTransition counts a navigation action.
func (m *NavigationMetrics) IncTransition(action string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(action)).Inc()
}

// IncPersistFailure counts a failed load or save.
func (m *NavigationMetrics) IncPersistFailure(op string) {
	if m == nil || m.persistFailures == nil {
		return
	}
	m.persistFailures.WithLabelValues(normalizeLabel(op)).Inc()
}
