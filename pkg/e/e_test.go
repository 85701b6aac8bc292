package e

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestWrapError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want error
	}{
		{"no_rows", pgx.ErrNoRows, ErrNotFound},
		{"deadline", context.DeadlineExceeded, ErrDeadline},
		{"canceled", fmt.Errorf("query: %w", context.Canceled), ErrCanceled},
		{"unique", &pgconn.PgError{Code: "23505"}, ErrUniqueViolation},
		{"check", &pgconn.PgError{Code: "23514"}, ErrInvalidInput},
		{"serialization", &pgconn.PgError{Code: "40001"}, ErrStoreUnavailable},
		{"other_pg", &pgconn.PgError{Code: "42P01"}, ErrInternal},
		{"unknown", errors.New("boom"), ErrInternal},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			got := WrapError(context.Background(), "op", c.err)
			if !errors.Is(got, c.want) {
				t.Fatalf("expected %v, got %v", c.want, got)
			}
		})
	}
}

func TestWrapError_Nil(t *testing.T) {
	if err := WrapError(context.Background(), "op", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(Wrap("op", ErrStoreUnavailable)) {
		t.Fatalf("store unavailable must be retryable")
	}
	if !Retryable(ErrLockBusy) {
		t.Fatalf("busy lock must be retryable")
	}
	if Retryable(ErrDuplicateReporter) {
		t.Fatalf("duplicate reporter must be terminal")
	}
}
