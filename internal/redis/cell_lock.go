package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"roadwatch/pkg/e"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const cellLockPrefix = "lock:cell:"

// release deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// CellLocker is a best-effort mutex per geo cell built on SET NX PX.
type CellLocker struct {
	client *goredis.Client
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
	logger *slog.Logger
}

func NewCellLocker(r *Redis, ttl, wait time.Duration, logger *slog.Logger) *CellLocker {
	return &CellLocker{
		client: r.Client,
		ttl:    ttl,
		wait:   wait,
		poll:   25 * time.Millisecond,
		logger: logger,
	}
}

// Lock blocks until the cell is free or wait elapses, then returns ErrLockBusy.
func (l *CellLocker) Lock(ctx context.Context, cell string) (func(), error) {
	const op = "redis.CellLocker.Lock"

	key := cellLockPrefix + cell
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, e.WrapError(ctx, op, ctx.Err())
			}
			return nil, fmt.Errorf("%s: %v: %w", op, err, e.ErrStoreUnavailable)
		}
		if ok {
			return l.unlockFunc(key, token), nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%s: cell %s: %w", op, cell, e.ErrLockBusy)
		}

		t := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, e.WrapError(ctx, op, ctx.Err())
		case <-t.C:
		}
	}
}

func (l *CellLocker) unlockFunc(key, token string) func() {
	return func() {
		// the request context may already be gone
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("cell unlock failed", slog.String("key", key), slog.Any("error", err))
		}
	}
}
