package model

// SeatKey identifies a single seat within a single screening. Row and
// Seat are zero-based positions in the screening's grid.
type SeatKey struct {
	ScreeningID uint64
	Row         int
	Seat        int
}

// SeatMapEntry is one cell of a seat-map snapshot. HolderID is nil for
// free seats. The snapshot is point-in-time only: a seat shown free here
// may already be taken by the time the caller acts on it, and callers
// are expected to re-fetch after a failed reserve rather than trust a
// stale map.
type SeatMapEntry struct {
	Row      int     `json:"row"`
	Seat     int     `json:"seat"`
	Reserved bool    `json:"is_reserved"`
	HolderID *uint64 `json:"holder_id,omitempty"`
}
