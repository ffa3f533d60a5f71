// Package reservation implements seat reservation and cancellation with
// double-booking prevention. The design leans on two storage
// primitives: the unique (screening, row, seat) key, which is the
// authoritative arbiter at booking-creation time, and per-record
// version tokens, which protect already-existing rows from lost
// updates. Version checks alone cannot prevent the creation race, since
// two readers can observe the same free seat before either inserts, so
// the constraint violation, not the version token, is translated into
// AlreadyReservedError.
package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arashfz/cinebook/internal/logger"
	"github.com/arashfz/cinebook/internal/metrics"
	"github.com/arashfz/cinebook/internal/model"
	"github.com/arashfz/cinebook/internal/queue"
	"github.com/arashfz/cinebook/internal/store"
)

// ScreeningDirectory resolves screenings and their seating grids.
// Missing screenings are reported as store.ErrNotFound.
type ScreeningDirectory interface {
	GetScreening(ctx context.Context, id uint64) (model.Screening, error)
}

// BookingStore persists bookings. Insert must be atomic with respect to
// the unique seat key: when another booking already holds the seat it
// returns *AlreadyReservedError, and when the backend rejects the write
// with a retryable infrastructure fault it returns an error wrapping
// ErrTransient. Get and GetBySeat report missing rows as
// store.ErrNotFound; ConditionalDelete follows the store.Store delete
// contract.
type BookingStore interface {
	Insert(ctx context.Context, b model.Booking) (model.Booking, error)
	Get(ctx context.Context, id uint64) (model.Booking, error)
	GetBySeat(ctx context.Context, key model.SeatKey) (model.Booking, error)
	ListByScreening(ctx context.Context, screeningID uint64) ([]model.Booking, error)
	ConditionalDelete(ctx context.Context, id uint64, expected store.VersionToken) error
}

// EventPublisher forwards reservation lifecycle events to the broker.
// Publishing is best effort; the service logs failures and moves on.
type EventPublisher interface {
	PublishReservationEvent(ctx context.Context, ev queue.ReservationEvent) error
}

const (
	// maxAttempts bounds internal retries of transient storage faults.
	// Legitimate conflicts are never retried.
	maxAttempts = 3
	// retryBackoff is multiplied by the attempt number between retries.
	retryBackoff = 100 * time.Millisecond
)

// Service coordinates reservations for all screenings. It holds no
// per-request state; every operation takes the acting user as an
// explicit holderID argument rather than reading ambient session data.
type Service struct {
	screenings ScreeningDirectory
	bookings   BookingStore
	events     EventPublisher
	rdb        *redis.Client
	cacheTTL   time.Duration
	log        logger.Logger
}

// NewService wires a Service. events and rdb may be nil, in which case
// event publishing and seat-map caching are disabled.
func NewService(screenings ScreeningDirectory, bookings BookingStore, events EventPublisher, rdb *redis.Client, cacheTTL time.Duration, log logger.Logger) *Service {
	if screenings == nil || bookings == nil {
		panic("nil storage passed to reservation.NewService")
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		screenings: screenings,
		bookings:   bookings,
		events:     events,
		rdb:        rdb,
		cacheTTL:   cacheTTL,
		log:        log,
	}
}

// Reserve books one seat for holderID. Outcomes:
//
//   - the booking with its version token when the insert commits;
//   - *InvalidSeatError when the position is outside the grid, rejected
//     before any write is attempted;
//   - *AlreadyReservedError when the unique seat key rejected the
//     insert, naming the holder who won;
//   - store.ErrNotFound when the screening does not exist;
//   - an ErrTransient-wrapped error when storage stayed contended after
//     the bounded retries, distinct from a legitimate conflict.
func (s *Service) Reserve(ctx context.Context, key model.SeatKey, holderID uint64) (model.Booking, error) {
	screening, err := s.screenings.GetScreening(ctx, key.ScreeningID)
	if err != nil {
		return model.Booking{}, err
	}
	if !screening.Contains(key.Row, key.Seat) {
		metrics.ReserveAttempts.WithLabelValues("invalid_seat").Inc()
		return model.Booking{}, &InvalidSeatError{
			Key:         key,
			RowCount:    screening.RowCount,
			SeatsPerRow: screening.SeatsPerRow,
		}
	}

	candidate := model.Booking{
		ScreeningID: key.ScreeningID,
		HolderID:    holderID,
		Row:         key.Row,
		Seat:        key.Seat,
		Status:      model.BookingConfirmed,
	}
	for attempt := 1; ; attempt++ {
		booked, err := s.bookings.Insert(ctx, candidate)
		if err == nil {
			metrics.ReserveAttempts.WithLabelValues("reserved").Inc()
			s.invalidateSeatMap(ctx, key.ScreeningID)
			s.publish(ctx, booked, model.BookingConfirmed)
			return booked, nil
		}
		var taken *AlreadyReservedError
		if errors.As(err, &taken) {
			metrics.ReserveAttempts.WithLabelValues("already_reserved").Inc()
			s.log.Info("seat already reserved",
				"screening_id", key.ScreeningID, "row", key.Row, "seat", key.Seat,
				"holder_id", holderID, "winner_id", taken.HolderID)
			return model.Booking{}, taken
		}
		if !errors.Is(err, ErrTransient) || attempt >= maxAttempts {
			if errors.Is(err, ErrTransient) {
				metrics.ReserveAttempts.WithLabelValues("transient").Inc()
				s.log.Error("reserve gave up after transient faults", "attempts", attempt, "error", err)
			} else {
				metrics.ReserveAttempts.WithLabelValues("error").Inc()
			}
			return model.Booking{}, err
		}
		metrics.TransientRetries.Inc()
		s.log.Warn("transient storage fault during reserve, retrying",
			"attempt", attempt, "error", err)
		if err := sleepCtx(ctx, time.Duration(attempt)*retryBackoff); err != nil {
			return model.Booking{}, err
		}
	}
}

// Cancel removes a booking the caller holds. The expected version must
// match the booking's current token; a stale token yields a
// *store.ConflictError with the booking's current state. A booking
// already cancelled by someone else yields store.ErrNotFound, never a
// conflict.
func (s *Service) Cancel(ctx context.Context, bookingID, holderID uint64, expected store.VersionToken) error {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.HolderID != holderID {
		return ErrForbidden
	}
	if err := s.bookings.ConditionalDelete(ctx, bookingID, expected); err != nil {
		if _, ok := store.AsConflict(err); ok {
			metrics.VersionConflicts.WithLabelValues("booking").Inc()
		}
		return err
	}
	s.invalidateSeatMap(ctx, b.ScreeningID)
	s.publish(ctx, b, model.BookingCancelled)
	return nil
}

// CancelBySeat removes the caller's booking for a specific seat. The
// booking's current version is used, so the only concurrency outcome is
// store.ErrNotFound when another actor got there first.
func (s *Service) CancelBySeat(ctx context.Context, key model.SeatKey, holderID uint64) error {
	b, err := s.bookings.GetBySeat(ctx, key)
	if err != nil {
		return err
	}
	if b.HolderID != holderID {
		// Do not reveal the holder of a seat the caller does not own.
		return store.ErrNotFound
	}
	return s.Cancel(ctx, b.ID, holderID, store.VersionToken(b.Version))
}

func (s *Service) publish(ctx context.Context, b model.Booking, status string) {
	if s.events == nil {
		return
	}
	ev := queue.ReservationEvent{
		BookingID:   b.ID,
		ScreeningID: b.ScreeningID,
		HolderID:    b.HolderID,
		Row:         b.Row,
		Seat:        b.Seat,
		Status:      status,
		OccurredAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.events.PublishReservationEvent(ctx, ev); err != nil {
		s.log.Warn("failed to publish reservation event",
			"booking_id", b.ID, "status", status, "error", err)
	}
}

// sleepCtx waits for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
