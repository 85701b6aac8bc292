package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"roadwatch/internal/domain"
	"roadwatch/pkg/e"

	"github.com/redis/go-redis/v9"
)

const EventQueueKey = "events:lifecycle"

// EventQueue is a FIFO list: LPUSH on enqueue, BRPOP on pop.
type EventQueue struct {
	client *redis.Client
	key    string
}

func NewEventQueue(client *redis.Client, key string) *EventQueue {
	return &EventQueue{client: client, key: key}
}

func (q *EventQueue) Enqueue(ctx context.Context, ev domain.LifecycleEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, b).Err()
}

func (q *EventQueue) Pop(ctx context.Context, timeout time.Duration) (domain.LifecycleEvent, error) {
	var ev domain.LifecycleEvent

	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ev, e.ErrEventQueueEmpty
		}
		return ev, err
	}
	if len(res) < 2 {
		return ev, e.ErrEventQueueEmpty
	}
	if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
		return ev, err
	}
	return ev, nil
}
