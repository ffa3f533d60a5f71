// Package metrics exposes prometheus collectors for the reservation
// core. Conflicts are counted separately from transient faults so that
// dashboards never confuse a legitimate losing writer with a storage
// hiccup.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReserveAttempts counts reserve outcomes by result:
	// reserved, already_reserved, invalid_seat, transient, error.
	ReserveAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinebook_reserve_attempts_total",
			Help: "Seat reservation attempts by outcome",
		},
		[]string{"outcome"},
	)

	// VersionConflicts counts conditional writes rejected with a stale
	// version, labelled by entity (user, booking).
	VersionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinebook_version_conflicts_total",
			Help: "Conditional writes rejected due to stale version tokens",
		},
		[]string{"entity"},
	)

	// TransientRetries counts internal retries of transient storage
	// faults during reserve.
	TransientRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cinebook_transient_retries_total",
			Help: "Bounded internal retries after transient storage faults",
		},
	)

	// SeatMapCache counts seat-map snapshot reads by source (hit, miss).
	SeatMapCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinebook_seatmap_cache_total",
			Help: "Seat map snapshot reads by cache outcome",
		},
		[]string{"outcome"},
	)
)
