package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultQueueKey is the Redis list holding pending notifications
const DefaultQueueKey = "planner-auth:notifications"

// RedisQueue is a Queue backed by a Redis list. Producers LPUSH and
// workers BRPOP, so messages survive a restart of this process.
type RedisQueue struct {
	client      *redis.Client
	key         string
	pollTimeout time.Duration
	ownsClient  bool
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisQueue connects to redisURL and checks the connection
func NewRedisQueue(ctx context.Context, redisURL, key string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	q := NewRedisQueueFromClient(client, key)
	q.ownsClient = true
	return q, nil
}

// NewRedisQueueFromClient wraps an existing client. Close leaves it open.
func NewRedisQueueFromClient(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisQueue{
		client:      client,
		key:         key,
		pollTimeout: time.Second,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("redis lpush failed: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Message{}, err
		}

		res, err := q.client.BRPop(ctx, q.pollTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Message{}, ctx.Err()
			}
			if errors.Is(err, redis.ErrClosed) {
				return Message{}, ErrQueueClosed
			}
			return Message{}, fmt.Errorf("redis brpop failed: %w", err)
		}

		// BRPOP replies with [key, value]
		if len(res) != 2 {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			return Message{}, fmt.Errorf("failed to unmarshal notification: %w", err)
		}
		return msg, nil
	}
}

// Len returns the number of pending messages
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

func (q *RedisQueue) Close() error {
	if q.ownsClient {
		return q.client.Close()
	}
	return nil
}
