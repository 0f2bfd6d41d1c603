package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultQueueKey = "notifyd:queue"

// redisQueue is a Redis list shared by distributed workers.
type redisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue returns a queue backed by the given Redis list key.
// An empty key uses the default.
func NewRedisQueue(client *redis.Client, key string) Queue {
	if key == "" {
		key = defaultQueueKey
	}
	return &redisQueue{client: client, key: key}
}

func (q *redisQueue) Enqueue(ctx context.Context, m Message) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return q.client.LPush(ctx, q.key, raw).Err()
}

func (q *redisQueue) Dequeue(ctx context.Context) (Message, error) {
	for {
		// Short poll timeout so ctx cancellation is honored promptly.
		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return Message{}, ctx.Err()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Message{}, ctx.Err()
			}
			return Message{}, err
		}
		if len(res) != 2 {
			return Message{}, fmt.Errorf("unexpected BRPOP reply length %d", len(res))
		}
		var m Message
		if err := json.Unmarshal([]byte(res[1]), &m); err != nil {
			return Message{}, fmt.Errorf("decode envelope: %w", err)
		}
		return m, nil
	}
}

func (q *redisQueue) Close() error { return nil }
