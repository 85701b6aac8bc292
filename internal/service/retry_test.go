package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"roadwatch/pkg/e"
)

func TestWithRetry(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))

	cases := []struct {
		name      string
		errs      []error
		attempts  int
		wantCalls int
		wantErr   error
	}{
		{name: "ok first try", errs: []error{nil}, attempts: 3, wantCalls: 1},
		{name: "transient then ok", errs: []error{e.ErrStoreUnavailable, e.ErrLockBusy, nil}, attempts: 3, wantCalls: 3},
		{name: "exhausted", errs: []error{e.ErrStoreUnavailable, e.ErrStoreUnavailable}, attempts: 2, wantCalls: 2, wantErr: e.ErrStoreUnavailable},
		{name: "permanent not retried", errs: []error{e.ErrDuplicateReporter}, attempts: 3, wantCalls: 1, wantErr: e.ErrDuplicateReporter},
		{name: "zero attempts runs once", errs: []error{nil}, attempts: 0, wantCalls: 1},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			err := withRetry(context.Background(), logger, "test", tc.attempts, time.Millisecond, func(context.Context) error {
				err := tc.errs[calls]
				calls++
				return err
			})
			if calls != tc.wantCalls {
				t.Fatalf("expected %d calls, got %d", tc.wantCalls, calls)
			}
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestWithRetry_ContextCanceled(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := withRetry(ctx, logger, "test", 5, time.Hour, func(context.Context) error {
		calls++
		cancel()
		return e.ErrStoreUnavailable
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if !errors.Is(err, e.ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
}
