package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"roadwatch/internal/domain"

	goredis "github.com/redis/go-redis/v9"
)

const activeIncidentsKey = "incidents:active"

// IncidentCache keeps the active incident list as one JSON blob.
type IncidentCache struct {
	client *goredis.Client
	key    string
}

func NewIncidentCache(r *Redis) *IncidentCache {
	return &IncidentCache{
		client: r.Client,
		key:    activeIncidentsKey,
	}
}

func (c *IncidentCache) GetActive(ctx context.Context) ([]domain.CachedIncident, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	incidents := []domain.CachedIncident{}
	if err := json.Unmarshal(data, &incidents); err != nil {
		return nil, err
	}

	return incidents, nil
}

func (c *IncidentCache) SetActive(ctx context.Context, incidents []domain.CachedIncident, ttl time.Duration) error {
	if incidents == nil {
		incidents = []domain.CachedIncident{}
	}
	b, err := json.Marshal(incidents)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key, b, ttl).Err()
}

func (c *IncidentCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
