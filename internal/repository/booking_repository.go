package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arashfz/cinebook/internal/model"
	"github.com/arashfz/cinebook/internal/reservation"
	"github.com/arashfz/cinebook/internal/store"
)

// BookingRepo implements reservation.BookingStore on the bookings
// table. The table carries a unique key on (screening_id, row_no,
// seat_no); Insert relies on that constraint rather than a
// check-then-insert sequence, because only the constraint is race-free
// at creation time. Conditional deletes are delegated to a MySQLStore
// bound to the same table so cancellation shares the store's
// lock-compare-write transaction.
type BookingRepo struct {
	db      *sql.DB
	records *store.MySQLStore
}

// bookingColumns is the column set exposed through the record store.
var bookingColumns = []string{"screening_id", "holder_id", "row_no", "seat_no", "status"}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo {
	return &BookingRepo{
		db:      db,
		records: store.NewMySQLStore(db, store.TableSpec{Table: "bookings", Columns: bookingColumns}),
	}
}

// Insert creates a confirmed booking and returns it with its assigned
// ID, fresh version token and timestamps. A duplicate-key rejection is
// translated into *reservation.AlreadyReservedError naming the current
// holder; lock timeouts and deadlocks are wrapped with
// reservation.ErrTransient for the service's bounded retry.
func (r *BookingRepo) Insert(ctx context.Context, b model.Booking) (model.Booking, error) {
	version := string(store.NewVersion())
	const q = `INSERT INTO bookings (screening_id, holder_id, row_no, seat_no, status, version)
               VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, b.ScreeningID, b.HolderID, b.Row, b.Seat, b.Status, version)
	if err != nil {
		switch {
		case isDuplicate(err):
			winner, lookupErr := r.GetBySeat(ctx, b.Key())
			if lookupErr != nil {
				// The winning row vanished between our insert and the
				// lookup (cancelled immediately). Let the caller retry.
				return model.Booking{}, fmt.Errorf("seat lost and freed mid-insert: %w", reservation.ErrTransient)
			}
			return model.Booking{}, &reservation.AlreadyReservedError{Key: b.Key(), HolderID: winner.HolderID}
		case isTransient(err):
			return model.Booking{}, fmt.Errorf("insert booking: %v: %w", err, reservation.ErrTransient)
		default:
			return model.Booking{}, err
		}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Booking{}, err
	}
	return r.Get(ctx, uint64(id))
}

// Get returns one booking by ID.
func (r *BookingRepo) Get(ctx context.Context, id uint64) (model.Booking, error) {
	const q = `SELECT id, screening_id, holder_id, row_no, seat_no, status, version, created_at, updated_at
               FROM bookings WHERE id = ?`
	return r.scanBooking(r.db.QueryRowContext(ctx, q, id))
}

// GetBySeat returns the booking holding the given seat, if any.
func (r *BookingRepo) GetBySeat(ctx context.Context, key model.SeatKey) (model.Booking, error) {
	const q = `SELECT id, screening_id, holder_id, row_no, seat_no, status, version, created_at, updated_at
               FROM bookings WHERE screening_id = ? AND row_no = ? AND seat_no = ?`
	return r.scanBooking(r.db.QueryRowContext(ctx, q, key.ScreeningID, key.Row, key.Seat))
}

// ListByScreening returns all bookings of a screening ordered by seat
// position for deterministic output.
func (r *BookingRepo) ListByScreening(ctx context.Context, screeningID uint64) ([]model.Booking, error) {
	const q = `SELECT id, screening_id, holder_id, row_no, seat_no, status, version, created_at, updated_at
               FROM bookings WHERE screening_id = ?
               ORDER BY row_no, seat_no`
	rows, err := r.db.QueryContext(ctx, q, screeningID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bookings := make([]model.Booking, 0)
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.ScreeningID, &b.HolderID, &b.Row, &b.Seat,
			&b.Status, &b.Version, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListByHolder returns the caller's bookings, newest first.
func (r *BookingRepo) ListByHolder(ctx context.Context, holderID uint64) ([]model.Booking, error) {
	const q = `SELECT id, screening_id, holder_id, row_no, seat_no, status, version, created_at, updated_at
               FROM bookings WHERE holder_id = ?
               ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, holderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bookings := make([]model.Booking, 0)
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.ScreeningID, &b.HolderID, &b.Row, &b.Seat,
			&b.Status, &b.Version, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

// ConditionalDelete removes the booking only when its version matches.
func (r *BookingRepo) ConditionalDelete(ctx context.Context, id uint64, expected store.VersionToken) error {
	err := r.records.ConditionalDelete(ctx, id, expected)
	if err != nil && isTransient(err) {
		return fmt.Errorf("delete booking: %v: %w", err, reservation.ErrTransient)
	}
	return err
}

func (r *BookingRepo) scanBooking(row *sql.Row) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.ScreeningID, &b.HolderID, &b.Row, &b.Seat,
		&b.Status, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, store.ErrNotFound
	}
	return b, err
}
