// Package queue defines message payloads exchanged over the message
// broker plus the publisher and consumer that move them.
package queue

// ReservationEvent is published whenever a reservation is confirmed or
// cancelled. It carries enough information for downstream consumers to
// log or trigger analytics without querying the primary database.
type ReservationEvent struct {
	BookingID   uint64 `json:"booking_id"`
	ScreeningID uint64 `json:"screening_id"`
	HolderID    uint64 `json:"holder_id"`
	Row         int    `json:"row"`
	Seat        int    `json:"seat"`
	Status      string `json:"status"`
	OccurredAt  string `json:"occurred_at"`
}
