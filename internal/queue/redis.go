// Package queue carries job wake-ups between the API and the workers over a
// Redis list. The jobs table stays the source of truth: a lost message only
// delays a job until the next poll.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type RedisQueue struct {
	client *redis.Client
	queue  string
}

func NewRedisQueue(addr, queue string) *RedisQueue {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
		MaxRetries:  1,
	})
	return &RedisQueue{client: rdb, queue: queue}
}

// Enqueue pushes jobID for a waiting worker.
func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	if err := q.client.LPush(ctx, q.queue, jobID).Err(); err != nil {
		return fmt.Errorf("queue: push %s: %w", jobID, err)
	}
	return nil
}

// Wait blocks up to timeout for the next job id. It returns "" and no error
// when the timeout elapses without a message.
func (q *RedisQueue) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	vals, err := q.client.BRPop(ctx, timeout, q.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("queue: pop: %w", err)
	}
	if len(vals) < 2 {
		return "", fmt.Errorf("queue: unexpected BRPOP response: %v", vals)
	}
	return vals[1], nil
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
