package postgres

import (
	"context"
	"errors"
	"fmt"

	"roadwatch/pkg/e"

	"github.com/jackc/pgx/v5"
)

// isExpected reports outcomes that callers branch on and that are not worth
// an error log line.
func isExpected(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) ||
		errors.Is(err, e.ErrNotFound) ||
		errors.Is(err, e.ErrDuplicateReporter)
}

// wrapTxError keeps domain sentinels returned from inside a transaction and
// maps driver errors the usual way.
func wrapTxError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, e.ErrNotFound):
		return fmt.Errorf("%s: %w", op, e.ErrNotFound)
	case errors.Is(err, e.ErrDuplicateReporter):
		return fmt.Errorf("%s: %w", op, e.ErrDuplicateReporter)
	default:
		return e.WrapError(ctx, op, err)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
