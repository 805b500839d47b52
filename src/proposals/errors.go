package proposals

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a vote or lookup targets a missing id.
var ErrNotFound = errors.New("proposals: not found")

// StorageError wraps connectivity, constraint and timeout failures.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("proposals: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Timeout reports whether the call ran out of time, either waiting for a
// pooled connection or inside the database.
func (e *StorageError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Constraint reports whether the database rejected the row.
func (e *StorageError) Constraint() bool {
	var pgErr *pgconn.PgError
	if errors.As(e.Err, &pgErr) {
		// class 23: integrity constraint violation
		return strings.HasPrefix(pgErr.Code, "23")
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(e.Err, &myErr) {
		switch myErr.Number {
		case 1048, 1062, 1451, 1452:
			return true
		}
	}
	return strings.Contains(strings.ToLower(e.Err.Error()), "constraint failed")
}

// IsStorageError reports whether err is a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
