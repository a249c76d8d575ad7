// Package repository holds the MySQL-backed stores. Sentinel errors below let
// the service layer tell failure scenarios apart without inspecting SQL
// errors itself.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrRequestNotFound = errors.New("vendor request not found")

	// ErrInsufficientStock is returned when the conditional decrement
	// matched no row: the ticket has fewer seats left than requested.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrTicketLocked is returned when an update or delete targets a
	// rejected ticket.
	ErrTicketLocked = errors.New("ticket is rejected and cannot be modified")

	// ErrConflict signals that the row is not in a state that allows the
	// requested transition.
	ErrConflict = errors.New("conflict")

	ErrEmailExists     = errors.New("email already exists")
	ErrPendingRequest  = errors.New("a pending vendor request already exists")
	ErrAdvertiseLimit  = errors.New("advertise limit reached")
	ErrNotAdvertisable = errors.New("only approved, active tickets can be advertised")

	// ErrSerialization wraps deadlocks and lock wait timeouts.
	ErrSerialization = errors.New("concurrent update, retry the request")
)

const (
	mysqlDuplicateEntry   = 1062
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlockDetected = 1213
)

func mysqlCode(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicateKey(err error) bool { return mysqlCode(err) == mysqlDuplicateEntry }

func isRetryable(err error) bool {
	code := mysqlCode(err)
	return code == mysqlDeadlockDetected || code == mysqlLockWaitTimeout
}
