package reservation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/arashfz/cinebook/internal/metrics"
	"github.com/arashfz/cinebook/internal/model"
)

func seatMapKey(screeningID uint64) string {
	return fmt.Sprintf("seatmap:%d", screeningID)
}

// SeatMap returns a point-in-time snapshot of the screening's grid with
// one entry per seat, ordered by row then seat. The snapshot is not
// consistent with concurrent reservations: a caller acting on it may
// still lose the seat and must re-fetch after a failed reserve. That
// staleness window is what makes the snapshot cacheable at all; entries
// are kept in Redis until the TTL expires or a mutation invalidates
// them.
func (s *Service) SeatMap(ctx context.Context, screeningID uint64) ([]model.SeatMapEntry, error) {
	if s.rdb != nil {
		raw, err := s.rdb.Get(ctx, seatMapKey(screeningID)).Result()
		if err == nil {
			var cached []model.SeatMapEntry
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				metrics.SeatMapCache.WithLabelValues("hit").Inc()
				return cached, nil
			}
		} else if err != redis.Nil {
			s.log.Warn("seat map cache read failed", "screening_id", screeningID, "error", err)
		}
		metrics.SeatMapCache.WithLabelValues("miss").Inc()
	}

	screening, err := s.screenings.GetScreening(ctx, screeningID)
	if err != nil {
		return nil, err
	}
	bookings, err := s.bookings.ListByScreening(ctx, screeningID)
	if err != nil {
		return nil, err
	}
	byKey := make(map[model.SeatKey]model.Booking, len(bookings))
	for _, b := range bookings {
		byKey[b.Key()] = b
	}

	entries := make([]model.SeatMapEntry, 0, screening.RowCount*screening.SeatsPerRow)
	for row := 0; row < screening.RowCount; row++ {
		for seat := 0; seat < screening.SeatsPerRow; seat++ {
			entry := model.SeatMapEntry{Row: row, Seat: seat}
			if b, ok := byKey[model.SeatKey{ScreeningID: screeningID, Row: row, Seat: seat}]; ok {
				holder := b.HolderID
				entry.Reserved = true
				entry.HolderID = &holder
			}
			entries = append(entries, entry)
		}
	}

	if s.rdb != nil && s.cacheTTL > 0 {
		if raw, err := json.Marshal(entries); err == nil {
			if err := s.rdb.Set(ctx, seatMapKey(screeningID), raw, s.cacheTTL).Err(); err != nil {
				s.log.Warn("seat map cache write failed", "screening_id", screeningID, "error", err)
			}
		}
	}
	return entries, nil
}

// CheckSeat reports whether a seat is free and, when taken, who holds
// it. Like SeatMap the answer is advisory only; the unique key at
// insert time remains the arbiter.
func (s *Service) CheckSeat(ctx context.Context, key model.SeatKey) (bool, *uint64, error) {
	screening, err := s.screenings.GetScreening(ctx, key.ScreeningID)
	if err != nil {
		return false, nil, err
	}
	if !screening.Contains(key.Row, key.Seat) {
		return false, nil, &InvalidSeatError{Key: key, RowCount: screening.RowCount, SeatsPerRow: screening.SeatsPerRow}
	}
	b, err := s.bookings.GetBySeat(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return true, nil, nil
		}
		return false, nil, err
	}
	holder := b.HolderID
	return false, &holder, nil
}

// invalidateSeatMap drops the cached snapshot after a mutation so the
// next read rebuilds it from storage. Failures only shorten the cache's
// usefulness, never correctness, so they are logged and ignored.
func (s *Service) invalidateSeatMap(ctx context.Context, screeningID uint64) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, seatMapKey(screeningID)).Err(); err != nil {
		s.log.Warn("seat map cache invalidation failed", "screening_id", screeningID, "error", err)
	}
}
