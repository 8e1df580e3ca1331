package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrTimeout is returned when a statement exceeds its statement_timeout.
	ErrTimeout = errors.New("storage: statement timeout")

	// ErrUnavailable is returned when no connection could be obtained in time or the
	// database cannot be reached.
	ErrUnavailable = errors.New("storage: database unavailable")
)

// pgQueryCanceled is the SQLSTATE raised when statement_timeout fires.
const pgQueryCanceled = "57014"

// classify maps driver errors onto the package sentinels. Errors that are
// neither timeouts nor connectivity problems are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgQueryCanceled {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

// errorKind labels an error for metrics.
func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}
