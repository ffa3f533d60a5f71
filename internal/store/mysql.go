package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// TableSpec binds a MySQLStore to one table. The table must have an
// auto-increment `id` primary key and a CHAR(36) `version` column; the
// Columns list names every other column the store is allowed to read
// and write. Columns outside the list are invisible to the store.
type TableSpec struct {
	Table   string
	Columns []string
}

// MySQLStore implements Store on top of a MySQL table. Each conditional
// operation runs in its own transaction and locks the target row with
// SELECT ... FOR UPDATE before comparing versions, so the version check
// and the write commit or fail as one unit even across pooled
// connections.
type MySQLStore struct {
	db   *sql.DB
	spec TableSpec
}

// NewMySQLStore returns a MySQLStore bound to the given table.
func NewMySQLStore(db *sql.DB, spec TableSpec) *MySQLStore {
	return &MySQLStore{db: db, spec: spec}
}

// Get returns the latest committed state of the record.
func (s *MySQLStore) Get(ctx context.Context, id uint64) (Record, error) {
	query := "SELECT version, " + strings.Join(s.spec.Columns, ", ") +
		" FROM " + s.spec.Table + " WHERE id = ?"
	row := s.db.QueryRowContext(ctx, query, id)
	rec, err := s.scanRecord(id, row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// ConditionalUpdate locks the row, compares versions, applies the
// mutator to a copy of the fields and writes the result back stamped
// with a fresh version. A mutator error rolls the transaction back and
// leaves the row untouched.
func (s *MySQLStore) ConditionalUpdate(ctx context.Context, id uint64, expected VersionToken, mutate Mutator) (VersionToken, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rec, err := s.lockRecord(ctx, tx, id)
	if err != nil {
		return "", err
	}
	if rec.Version != expected {
		return "", &ConflictError{Attempted: expected, Current: rec}
	}
	next := rec.Clone()
	if err := mutate(next.Fields); err != nil {
		return "", err
	}
	next.Version = NewVersion()

	assignments := make([]string, 0, len(s.spec.Columns)+1)
	args := make([]any, 0, len(s.spec.Columns)+2)
	for _, col := range s.spec.Columns {
		assignments = append(assignments, col+" = ?")
		args = append(args, next.Fields[col])
	}
	assignments = append(assignments, "version = ?")
	args = append(args, string(next.Version), id)
	query := "UPDATE " + s.spec.Table + " SET " + strings.Join(assignments, ", ") + " WHERE id = ?"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	committed = true
	return next.Version, nil
}

// ConditionalDelete locks the row, compares versions and deletes it.
func (s *MySQLStore) ConditionalDelete(ctx context.Context, id uint64, expected VersionToken) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rec, err := s.lockRecord(ctx, tx, id)
	if err != nil {
		return err
	}
	if rec.Version != expected {
		return &ConflictError{Attempted: expected, Current: rec}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+s.spec.Table+" WHERE id = ?", id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// lockRecord reads the row under FOR UPDATE so no concurrent conditional
// operation can slip between the version check and the write.
func (s *MySQLStore) lockRecord(ctx context.Context, tx *sql.Tx, id uint64) (Record, error) {
	query := "SELECT version, " + strings.Join(s.spec.Columns, ", ") +
		" FROM " + s.spec.Table + " WHERE id = ? FOR UPDATE"
	rec, err := s.scanRecord(id, tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// rowScanner is satisfied by both *sql.Row results used above.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *MySQLStore) scanRecord(id uint64, row rowScanner) (Record, error) {
	dest := make([]any, len(s.spec.Columns)+1)
	var version string
	dest[0] = &version
	values := make([]any, len(s.spec.Columns))
	for i := range values {
		dest[i+1] = &values[i]
	}
	if err := row.Scan(dest...); err != nil {
		return Record{}, err
	}
	fields := make(map[string]any, len(s.spec.Columns))
	for i, col := range s.spec.Columns {
		// The MySQL driver hands string columns back as []byte.
		if b, ok := values[i].([]byte); ok {
			fields[col] = string(b)
			continue
		}
		fields[col] = values[i]
	}
	return Record{ID: id, Version: VersionToken(version), Fields: fields}, nil
}
