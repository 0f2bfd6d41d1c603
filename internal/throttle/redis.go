package throttle

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript increments a counter and applies the window TTL only when
// the key is created, so the bucket expires relative to its first event.
var incrScript = redis.NewScript(`
local v = redis.call('INCR', KEYS[1])
if v == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return v
`)

// RedisCache backs the limiter with a shared Redis instance so throttle
// state is coordinated across worker processes.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) GetTime(ctx context.Context, key string) (time.Time, bool, error) {
	raw, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func (c *RedisCache) SetTime(ctx context.Context, key string, t time.Time, ttl time.Duration) error {
	return c.client.Set(ctx, key, t.Format(time.RFC3339Nano), ttl).Err()
}

func (c *RedisCache) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return incrScript.Run(ctx, c.client, []string{key}, ttl.Milliseconds()).Int64()
}
