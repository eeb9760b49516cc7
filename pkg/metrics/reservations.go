package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReservationMetrics counts reservation manager calls by operation and outcome.
type ReservationMetrics struct {
	calls *prometheus.CounterVec
}

func NewReservationMetrics(reg prometheus.Registerer) *ReservationMetrics {
	if reg == nil {
		return &ReservationMetrics{}
	}
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_calls_total",
		Help: "Reservation manager calls by operation and outcome.",
	}, []string{"operation", "outcome"})
	reg.MustRegister(calls)
	return &ReservationMetrics{calls: calls}
}

// Inc records one call; outcome is typically ok, insufficient, not_found or error.
func (m *ReservationMetrics) Inc(operation, outcome string) {
	if m == nil || m.calls == nil {
		return
	}
	m.calls.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}
