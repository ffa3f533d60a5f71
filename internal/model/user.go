package model

import "time"

// Role names stored in the users.role column and carried in JWT claims.
const (
	RoleAdmin    = "ADMIN"
	RoleCustomer = "CUSTOMER"
)

// User represents an application user record as stored in the `users`
// table. The Version field holds the concurrency stamp for the record:
// it is regenerated on every successful write and must be echoed back
// unchanged by clients when submitting an update. Handlers define their
// own response types; these structs carry no JSON tags.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  FullName     – display name, editable through the profile endpoints.
//  Role         – ADMIN or CUSTOMER.
//  IsActive     – whether the account is active.
//  Version      – opaque concurrency stamp (uuid string).
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64
	Email        string
	PasswordHash string
	FullName     string
	Role         string
	IsActive     bool
	Version      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user may edit records other than their own.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
