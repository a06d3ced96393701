// Package repository defines the persistence ports used by the
// reservation core together with their MySQL implementations.  Every
// mutation is a conditional write; callers learn whether it applied
// from the affected-row count or from the sentinel errors below.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when registering an email twice.
var ErrEmailExists = errors.New("email already exists")

// ErrStateChanged is returned by Finalize when the reservation was no
// longer pending at the moment of the conditional update, i.e. another
// actor confirmed, cancelled or expired it first.
var ErrStateChanged = errors.New("reservation state changed")

// ErrPoolNotDraft is returned by PublishPool when the pool was not in
// draft status.
var ErrPoolNotDraft = errors.New("pool is not a draft")

// ErrSeatConflict is returned by Finalize when fewer seats than requested
// were still reserved by the reservation.
var ErrSeatConflict = errors.New("seat state conflict")

// ErrInsufficientBalance is returned by Finalize when the conditional
// debit did not apply.
var ErrInsufficientBalance = errors.New("insufficient balance")

// MySQL error numbers that are safe to retry.
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
	mysqlDuplicateEntry  = 1062
)

// IsTransient reports whether err is a lock wait timeout or deadlock that
// may succeed when the whole unit is retried.
func IsTransient(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDeadlock || me.Number == mysqlLockWaitTimeout
	}
	return false
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
