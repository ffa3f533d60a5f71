package model

import "time"

// Booking statuses. A booking is authoritative the moment its insert
// commits; cancellation removes the row, so CANCELLED only appears in
// event payloads and audit output, never as a live row blocking a seat.
const (
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
)

// Booking ties one seat of one screening to the user holding it. The
// (ScreeningID, Row, Seat) triple is protected by a unique key in the
// bookings table; that constraint, not the Version column, is what makes
// double booking impossible under concurrent inserts.
type Booking struct {
	ID          uint64
	ScreeningID uint64
	HolderID    uint64
	Row         int
	Seat        int
	Status      string
	Version     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Key returns the composite seat identity of this booking.
func (b Booking) Key() SeatKey {
	return SeatKey{ScreeningID: b.ScreeningID, Row: b.Row, Seat: b.Seat}
}
