package access

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"safeharbor/pkg/domain"
)

// RedisRetention mirrors client touches as TTL-keyed entries so the retention
// window ages out without a sweeper, and so multiple instances share one
// freshness view.
type RedisRetention struct {
	client *redis.Client
}

func NewRedisRetention(client *redis.Client) *RedisRetention {
	return &RedisRetention{client: client}
}

func retentionKey(client domain.ClientHash) string {
	return "safeharbor:retention:" + client.String()
}

func (r *RedisRetention) Touch(ctx context.Context, client domain.ClientHash, now time.Time, window time.Duration) error {
	if err := r.client.Set(ctx, retentionKey(client), now.Format(time.RFC3339Nano), window).Err(); err != nil {
		return fmt.Errorf("touch retention key: %w", err)
	}
	return nil
}

func (r *RedisRetention) Fresh(ctx context.Context, client domain.ClientHash, _ time.Time, _ time.Duration) (bool, error) {
	n, err := r.client.Exists(ctx, retentionKey(client)).Result()
	if err != nil {
		return false, fmt.Errorf("retention lookup: %w", err)
	}
	return n > 0, nil
}
