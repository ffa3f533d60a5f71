package model

import "time"

// Screening represents a single showing of a movie together with its
// seating grid. The grid is a simple rows×seatsPerRow rectangle stored
// directly on the screening; seat positions are zero-based indexes into
// that grid. Deleting a screening cascades to its bookings.
type Screening struct {
	ID          uint64
	Title       string
	StartsAt    time.Time
	RowCount    int
	SeatsPerRow int
	Version     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Contains reports whether the seat position lies inside the grid.
func (s Screening) Contains(row, seat int) bool {
	return row >= 0 && row < s.RowCount && seat >= 0 && seat < s.SeatsPerRow
}
