// Package repository holds the MySQL implementations of the storage
// ports used by the reservation core and the HTTP handlers. Missing
// rows are reported as store.ErrNotFound, stale versions as
// *store.ConflictError, and infrastructure-level faults that are safe
// to retry as errors wrapping reservation.ErrTransient, so higher
// layers distinguish every failure kind without inspecting driver
// errors themselves.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrEmailExists is returned when registering with an email address
// that is already taken. Handlers should translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// MySQL server error numbers this package classifies.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// isDuplicate reports whether err is a unique-key violation. For the
// bookings table this is the authoritative double-booking signal.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// isTransient reports whether err is a retryable contention fault, as
// opposed to a legitimate conflict or a real failure.
func isTransient(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == mysqlLockWaitTimeout || me.Number == mysqlDeadlock
}
