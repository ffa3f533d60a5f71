package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/arashfz/cinebook/internal/model"
	"github.com/arashfz/cinebook/internal/store"
)

// ScreeningRepo provides CRUD access to the screenings table. A
// screening owns its seating grid (row_count × seats_per_row); the
// bookings table references it with ON DELETE CASCADE, so removing a
// screening also removes every booking made against it.
type ScreeningRepo struct {
	db *sql.DB
}

// NewScreeningRepo returns a ScreeningRepo bound to the given database.
func NewScreeningRepo(db *sql.DB) *ScreeningRepo { return &ScreeningRepo{db: db} }

// Create inserts a screening and returns it with ID and version
// populated.
func (r *ScreeningRepo) Create(ctx context.Context, title string, startsAt time.Time, rowCount, seatsPerRow int) (model.Screening, error) {
	version := string(store.NewVersion())
	const q = `INSERT INTO screenings (title, starts_at, row_count, seats_per_row, version)
               VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, title, startsAt.UTC().Format("2006-01-02 15:04:05"), rowCount, seatsPerRow, version)
	if err != nil {
		return model.Screening{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Screening{}, err
	}
	return r.GetScreening(ctx, uint64(id))
}

// GetScreening returns one screening by ID, or store.ErrNotFound.
func (r *ScreeningRepo) GetScreening(ctx context.Context, id uint64) (model.Screening, error) {
	const q = `SELECT id, title, starts_at, row_count, seats_per_row, version, created_at, updated_at
               FROM screenings WHERE id = ?`
	var s model.Screening
	err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.Title, &s.StartsAt,
		&s.RowCount, &s.SeatsPerRow, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Screening{}, store.ErrNotFound
	}
	return s, err
}

// List returns all screenings ordered by start time.
func (r *ScreeningRepo) List(ctx context.Context) ([]model.Screening, error) {
	const q = `SELECT id, title, starts_at, row_count, seats_per_row, version, created_at, updated_at
               FROM screenings ORDER BY starts_at`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	screenings := make([]model.Screening, 0)
	for rows.Next() {
		var s model.Screening
		if err := rows.Scan(&s.ID, &s.Title, &s.StartsAt, &s.RowCount, &s.SeatsPerRow,
			&s.Version, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		screenings = append(screenings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return screenings, nil
}

// Delete removes a screening. Bookings cascade at the database level.
func (r *ScreeningRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM screenings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
