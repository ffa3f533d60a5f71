package reservation

import (
	"errors"
	"fmt"

	"github.com/arashfz/cinebook/internal/model"
	"github.com/arashfz/cinebook/internal/store"
)

func isNotFound(err error) bool { return errors.Is(err, store.ErrNotFound) }

// ErrForbidden is returned when the caller attempts to cancel a booking
// held by someone else. Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrTransient marks an infrastructure-level storage fault (lock wait
// timeout, deadlock victim) that is safe to retry a bounded number of
// times. Storage adapters wrap the underlying error with this sentinel;
// it must never be used for legitimate conflicts. When the retry budget
// is exhausted the wrapped error is surfaced as-is, still matching
// errors.Is(err, ErrTransient), so callers can tell "storage was busy"
// apart from "someone else owns that seat".
var ErrTransient = errors.New("transient storage contention")

// AlreadyReservedError is the authoritative double-booking signal: the
// unique (screening, row, seat) key rejected the insert because another
// reservation holds the seat. HolderID identifies the winner.
type AlreadyReservedError struct {
	Key      model.SeatKey
	HolderID uint64
}

func (e *AlreadyReservedError) Error() string {
	return fmt.Sprintf("seat %d/%d of screening %d is already reserved by user %d",
		e.Key.Row, e.Key.Seat, e.Key.ScreeningID, e.HolderID)
}

// InvalidSeatError reports a seat position outside the screening's grid.
// It is produced before any write is attempted.
type InvalidSeatError struct {
	Key         model.SeatKey
	RowCount    int
	SeatsPerRow int
}

func (e *InvalidSeatError) Error() string {
	return fmt.Sprintf("seat %d/%d is outside the %dx%d grid of screening %d",
		e.Key.Row, e.Key.Seat, e.RowCount, e.SeatsPerRow, e.Key.ScreeningID)
}
