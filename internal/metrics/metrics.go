// Package metrics exposes Prometheus counters for the engine's operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	BookingsTotal       prometheus.Counter
	SessionsCancelled   prometheus.Counter
	SessionsCompleted   prometheus.Counter
	SessionsNoShow      prometheus.Counter
	ContractsProposed   prometheus.Counter
	ContractsAccepted   prometheus.Counter
	ContractsRejected   prometheus.Counter
	ContractsCancelled  prometheus.Counter
	OccurrencesSkipped  prometheus.Counter
	BlackoutsDeclared   prometheus.Counter
	BlackoutCancelled   prometheus.Counter
	BlackoutFailed      prometheus.Counter
	InsufficientCredits prometheus.Counter
	SlotRaceRejections  prometheus.Counter
}

// New registers the engine counters on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      name,
			Help:      help,
		})
	}
	return &Metrics{
		BookingsTotal:       counter("bookings_total", "Sessions booked (ad-hoc)."),
		SessionsCancelled:   counter("sessions_cancelled_total", "Sessions cancelled."),
		SessionsCompleted:   counter("sessions_completed_total", "Sessions completed."),
		SessionsNoShow:      counter("sessions_no_show_total", "Sessions marked no-show."),
		ContractsProposed:   counter("contracts_proposed_total", "Recurring contracts proposed."),
		ContractsAccepted:   counter("contracts_accepted_total", "Recurring contracts accepted."),
		ContractsRejected:   counter("contracts_rejected_total", "Recurring contracts rejected."),
		ContractsCancelled:  counter("contracts_cancelled_total", "Recurring contracts cancelled."),
		OccurrencesSkipped:  counter("contract_occurrences_skipped_total", "Occurrences skipped at contract acceptance."),
		BlackoutsDeclared:   counter("blackouts_declared_total", "Unavailability periods declared."),
		BlackoutCancelled:   counter("blackout_sessions_cancelled_total", "Sessions cancelled by blackout reconciliation."),
		BlackoutFailed:      counter("blackout_sessions_failed_total", "Sessions a blackout reconciliation failed to cancel."),
		InsufficientCredits: counter("insufficient_credits_total", "Operations rejected for insufficient credits."),
		SlotRaceRejections:  counter("slot_race_rejections_total", "Bookings rejected because the slot was taken at commit time."),
	}
}
