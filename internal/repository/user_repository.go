package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/arashfz/cinebook/internal/model"
	"github.com/arashfz/cinebook/internal/store"
	"github.com/arashfz/cinebook/internal/utils"
)

// UserRepo mirrors the 'users' table. Profile mutations do not go
// through this type: they run against Records(), a versioned record
// store bound to the same table, so that every edit is guarded by the
// user's concurrency stamp. The password hash is deliberately excluded
// from the record store's column set because a conflict report must
// never echo it back to a client.
type UserRepo struct {
	DB      *sql.DB
	records *store.MySQLStore
}

// userColumns is the column set exposed through the record store.
var userColumns = []string{"email", "full_name", "role", "is_active"}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{
		DB:      db,
		records: store.NewMySQLStore(db, store.TableSpec{Table: "users", Columns: userColumns}),
	}
}

// Records exposes the versioned view of the users table for the
// conditional-update profile path.
func (r *UserRepo) Records() store.Store { return r.records }

// Create inserts a user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, email, password, fullName, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, full_name, role, version) VALUES (?,?,?,?,?)",
		email, hash, fullName, role, string(store.NewVersion()))
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanUser(r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,full_name,role,is_active,version,created_at,updated_at FROM users WHERE email=? LIMIT 1",
		email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanUser(r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,full_name,role,is_active,version,created_at,updated_at FROM users WHERE id=? LIMIT 1",
		id))
}

func (r *UserRepo) scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role,
		&u.IsActive, &u.Version, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, store.ErrNotFound
	}
	return u, err
}
