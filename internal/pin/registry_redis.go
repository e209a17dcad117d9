package pin

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRegistry keeps the active-code set in a redis set, shared by every
// instance pointing at the same prefix.
type RedisRegistry struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisRegistry(r redis.UniversalClient, prefix string) *RedisRegistry {
	return &RedisRegistry{redis: r, prefix: prefix}
}

func (r *RedisRegistry) ListActive(ctx context.Context) ([]string, error) {
	codes, err := r.redis.SMembers(ctx, r.key()).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers: %w", err)
	}
	return codes, nil
}

func (r *RedisRegistry) Reserve(ctx context.Context, code string) error {
	added, err := r.redis.SAdd(ctx, r.key(), code).Result()
	if err != nil {
		return fmt.Errorf("sadd: %w", err)
	}
	if added == 0 {
		return fmt.Errorf("code %s: %w", code, ErrCodeTaken)
	}
	return nil
}

func (r *RedisRegistry) Release(ctx context.Context, code string) error {
	if err := r.redis.SRem(ctx, r.key(), code).Err(); err != nil {
		return fmt.Errorf("srem: %w", err)
	}
	return nil
}

func (r *RedisRegistry) key() string {
	return fmt.Sprintf("%s:pins:active", r.prefix)
}
