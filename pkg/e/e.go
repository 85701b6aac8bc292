package e

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func Wrap(message string, err error) error {
	return fmt.Errorf("%s: %w", message, err)
}

var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInternal               = errors.New("internal error")
	ErrDeadline               = errors.New("deadline exceeded")
	ErrCanceled               = errors.New("context canceled")
	ErrUniqueViolation        = errors.New("unique violation")
	ErrInvalidCoordinates     = errors.New("invalid coordinates")
	ErrInvalidUserID          = errors.New("invalid user_id")
	ErrEventQueueEmpty        = errors.New("event queue is empty")
	ErrDuplicateReporter      = errors.New("user already reported this incident")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrObjectStoreUnavailable = errors.New("object store unavailable")
	ErrLockBusy               = errors.New("area is busy, retry later")
)

// Retryable reports whether err is a transient infrastructure failure.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrLockBusy)
}

func WrapError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrDeadline)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, ErrCanceled)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", op, ErrUniqueViolation)
		case "23503", "23514":
			return fmt.Errorf("%s: %w", op, ErrInvalidInput)
		case "40001", "40P01", "57P01", "57P03", "53300":
			// serialization failure, deadlock, admin shutdown, cannot connect now, too many connections
			return fmt.Errorf("%s: pg error %s: %w", op, pgErr.Code, ErrStoreUnavailable)
		default:
			return fmt.Errorf("%s: pg error %s: %w", op, pgErr.Code, ErrInternal)
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
	}
	return fmt.Errorf("%s: %w", op, ErrInternal)
}
