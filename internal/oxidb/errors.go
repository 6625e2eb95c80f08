package oxidb

import (
	"errors"
	"fmt"
)

// ErrBrokenConn is returned by a client whose connection failed mid-frame.
var ErrBrokenConn = errors.New("oxidb: connection broken")

// Error is returned when the OxiDB server returns an error response.
type Error struct {
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("oxidb: %s", e.Msg)
}

// TransactionConflictError is returned on OCC version conflict during commit.
type TransactionConflictError struct {
	Msg string
}

func (e *TransactionConflictError) Error() string {
	return fmt.Sprintf("oxidb: transaction conflict: %s", e.Msg)
}

// IsConflict reports whether err is an OCC conflict.
func IsConflict(err error) bool {
	var tc *TransactionConflictError
	return errors.As(err, &tc)
}
