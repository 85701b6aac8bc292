package service

import (
	"context"
	"log/slog"
	"time"

	"roadwatch/pkg/e"
)

// withRetry runs fn until it succeeds, fails with a non-retryable error or
// attempts run out. The delay grows linearly with the attempt number.
func withRetry(ctx context.Context, logger *slog.Logger, op string, attempts int, base time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !e.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		logger.Warn("transient failure, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return e.WrapError(ctx, op, ctx.Err())
		case <-time.After(time.Duration(attempt) * base):
		}
	}
	return err
}
