package reservation_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arashfz/cinebook/internal/logger"
	"github.com/arashfz/cinebook/internal/model"
	"github.com/arashfz/cinebook/internal/queue"
	"github.com/arashfz/cinebook/internal/reservation"
	"github.com/arashfz/cinebook/internal/store"
)

type fakeScreenings struct {
	screenings map[uint64]model.Screening
}

func (f *fakeScreenings) GetScreening(_ context.Context, id uint64) (model.Screening, error) {
	s, ok := f.screenings[id]
	if !ok {
		return model.Screening{}, store.ErrNotFound
	}
	return s, nil
}

// fakeBookings enforces the unique seat key under a mutex, mirroring
// what the bookings table's unique index provides.
type fakeBookings struct {
	mu            sync.Mutex
	byID          map[uint64]model.Booking
	bySeat        map[model.SeatKey]uint64
	lastID        uint64
	inserts       int
	transientLeft int
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{
		byID:   make(map[uint64]model.Booking),
		bySeat: make(map[model.SeatKey]uint64),
	}
}

func (f *fakeBookings) Insert(_ context.Context, b model.Booking) (model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.transientLeft > 0 {
		f.transientLeft--
		return model.Booking{}, fmt.Errorf("lock wait timeout exceeded: %w", reservation.ErrTransient)
	}
	key := b.Key()
	if winnerID, ok := f.bySeat[key]; ok {
		return model.Booking{}, &reservation.AlreadyReservedError{Key: key, HolderID: f.byID[winnerID].HolderID}
	}
	f.lastID++
	b.ID = f.lastID
	b.Version = string(store.NewVersion())
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	f.byID[b.ID] = b
	f.bySeat[key] = b.ID
	return b, nil
}

func (f *fakeBookings) Get(_ context.Context, id uint64) (model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byID[id]
	if !ok {
		return model.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (f *fakeBookings) GetBySeat(_ context.Context, key model.SeatKey) (model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.bySeat[key]
	if !ok {
		return model.Booking{}, store.ErrNotFound
	}
	return f.byID[id], nil
}

func (f *fakeBookings) ListByScreening(_ context.Context, screeningID uint64) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Booking
	for _, b := range f.byID {
		if b.ScreeningID == screeningID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBookings) ConditionalDelete(_ context.Context, id uint64, expected store.VersionToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	if store.VersionToken(b.Version) != expected {
		return &store.ConflictError{
			Attempted: expected,
			Current: store.Record{
				ID:      b.ID,
				Version: store.VersionToken(b.Version),
				Fields:  map[string]any{"holder_id": b.HolderID, "status": b.Status},
			},
		}
	}
	delete(f.bySeat, b.Key())
	delete(f.byID, id)
	return nil
}

type capturedEvents struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
}

func (c *capturedEvents) PublishReservationEvent(_ context.Context, ev queue.ReservationEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func newTestService(bookings *fakeBookings) (*reservation.Service, *capturedEvents) {
	screenings := &fakeScreenings{screenings: map[uint64]model.Screening{
		1: {ID: 1, Title: "Night Train", RowCount: 10, SeatsPerRow: 12},
	}}
	events := &capturedEvents{}
	svc := reservation.NewService(screenings, bookings, events, nil, 0, logger.NewNop())
	return svc, events
}

func TestReserveConcurrentSameSeatExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	bookings := newFakeBookings()
	svc, _ := newTestService(bookings)
	key := model.SeatKey{ScreeningID: 1, Row: 2, Seat: 3}

	const callers = 12
	var wg sync.WaitGroup
	errs := make([]error, callers)
	won := make([]model.Booking, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			won[i], errs[i] = svc.Reserve(ctx, key, uint64(100+i))
		}(i)
	}
	wg.Wait()

	var winner *model.Booking
	losers := 0
	for i := range errs {
		if errs[i] == nil {
			require.Nil(t, winner, "two reserve calls succeeded for the same seat")
			b := won[i]
			winner = &b
			continue
		}
		var taken *reservation.AlreadyReservedError
		require.ErrorAs(t, errs[i], &taken)
		losers++
	}
	require.NotNil(t, winner, "no reserve call succeeded")
	assert.Equal(t, callers-1, losers)

	// Losers are told who won.
	_, err := svc.Reserve(ctx, key, 999)
	var taken *reservation.AlreadyReservedError
	require.ErrorAs(t, err, &taken)
	assert.Equal(t, winner.HolderID, taken.HolderID)

	// The seat map shows the seat held by the winner only.
	entries, err := svc.SeatMap(ctx, 1)
	require.NoError(t, err)
	reserved := 0
	for _, e := range entries {
		if e.Reserved {
			reserved++
			assert.Equal(t, 2, e.Row)
			assert.Equal(t, 3, e.Seat)
			require.NotNil(t, e.HolderID)
			assert.Equal(t, winner.HolderID, *e.HolderID)
		}
	}
	assert.Equal(t, 1, reserved)
	assert.Len(t, entries, 10*12)
}

func TestReserveInvalidSeatSkipsStorage(t *testing.T) {
	bookings := newFakeBookings()
	svc, _ := newTestService(bookings)

	_, err := svc.Reserve(context.Background(), model.SeatKey{ScreeningID: 1, Row: 99, Seat: 0}, 42)
	var invalid *reservation.InvalidSeatError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 10, invalid.RowCount)
	assert.Zero(t, bookings.inserts, "invalid seats must be rejected before any insert")
}

func TestReserveUnknownScreening(t *testing.T) {
	svc, _ := newTestService(newFakeBookings())
	_, err := svc.Reserve(context.Background(), model.SeatKey{ScreeningID: 404, Row: 0, Seat: 0}, 42)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReserveRetriesTransientFaults(t *testing.T) {
	bookings := newFakeBookings()
	bookings.transientLeft = 2
	svc, events := newTestService(bookings)

	b, err := svc.Reserve(context.Background(), model.SeatKey{ScreeningID: 1, Row: 0, Seat: 0}, 42)
	require.NoError(t, err)
	assert.Equal(t, 3, bookings.inserts, "two transient failures then a success")
	assert.NotEmpty(t, b.Version)
	require.Len(t, events.events, 1)
	assert.Equal(t, model.BookingConfirmed, events.events[0].Status)
}

func TestReserveTransientExhaustionIsNotAConflict(t *testing.T) {
	bookings := newFakeBookings()
	bookings.transientLeft = 10
	svc, _ := newTestService(bookings)

	_, err := svc.Reserve(context.Background(), model.SeatKey{ScreeningID: 1, Row: 0, Seat: 0}, 42)
	require.ErrorIs(t, err, reservation.ErrTransient)
	var taken *reservation.AlreadyReservedError
	assert.False(t, errors.As(err, &taken))
	assert.Equal(t, 3, bookings.inserts, "retry budget is bounded")
}

func TestCancelOutcomes(t *testing.T) {
	ctx := context.Background()
	bookings := newFakeBookings()
	svc, events := newTestService(bookings)

	b, err := svc.Reserve(ctx, model.SeatKey{ScreeningID: 1, Row: 1, Seat: 1}, 42)
	require.NoError(t, err)

	// Wrong holder is rejected before any version check.
	err = svc.Cancel(ctx, b.ID, 43, store.VersionToken(b.Version))
	assert.ErrorIs(t, err, reservation.ErrForbidden)

	// A stale version yields a conflict with current state.
	err = svc.Cancel(ctx, b.ID, 42, "stale")
	conflict, ok := store.AsConflict(err)
	require.True(t, ok)
	assert.Equal(t, store.VersionToken(b.Version), conflict.Current.Version)

	// Matching version cancels and frees the seat.
	require.NoError(t, svc.Cancel(ctx, b.ID, 42, store.VersionToken(b.Version)))
	free, holder, err := svc.CheckSeat(ctx, model.SeatKey{ScreeningID: 1, Row: 1, Seat: 1})
	require.NoError(t, err)
	assert.True(t, free)
	assert.Nil(t, holder)

	// Cancelling a booking that is already gone reports NotFound, not
	// Conflict.
	err = svc.Cancel(ctx, b.ID, 42, store.VersionToken(b.Version))
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.Len(t, events.events, 2)
	assert.Equal(t, model.BookingCancelled, events.events[1].Status)
}

func TestCancelBySeatHidesForeignBookings(t *testing.T) {
	ctx := context.Background()
	bookings := newFakeBookings()
	svc, _ := newTestService(bookings)
	key := model.SeatKey{ScreeningID: 1, Row: 4, Seat: 4}

	_, err := svc.Reserve(ctx, key, 42)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.CancelBySeat(ctx, key, 7), store.ErrNotFound)
	require.NoError(t, svc.CancelBySeat(ctx, key, 42))
}

func TestSeatMapUsesCacheAndInvalidatesOnReserve(t *testing.T) {
	ctx := context.Background()
	rdb, mock := redismock.NewClientMock()
	bookings := newFakeBookings()
	screenings := &fakeScreenings{screenings: map[uint64]model.Screening{
		1: {ID: 1, Title: "Night Train", RowCount: 1, SeatsPerRow: 2},
	}}
	svc := reservation.NewService(screenings, bookings, nil, rdb, time.Minute, logger.NewNop())

	empty := []model.SeatMapEntry{{Row: 0, Seat: 0}, {Row: 0, Seat: 1}}
	raw, err := json.Marshal(empty)
	require.NoError(t, err)

	// Miss populates the cache, hit serves from it.
	mock.ExpectGet("seatmap:1").RedisNil()
	mock.ExpectSet("seatmap:1", raw, time.Minute).SetVal("OK")
	got, err := svc.SeatMap(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, empty, got)

	mock.ExpectGet("seatmap:1").SetVal(string(raw))
	got, err = svc.SeatMap(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, empty, got)

	// A successful reserve drops the snapshot.
	mock.ExpectDel("seatmap:1").SetVal(1)
	_, err = svc.Reserve(ctx, model.SeatKey{ScreeningID: 1, Row: 0, Seat: 1}, 42)
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
