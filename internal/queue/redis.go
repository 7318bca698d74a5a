package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taleval/taleval/internal/model"
)

const popTimeout = 5 * time.Second

// Redis is a durable queue backed by a redis list. Multiple worker
// processes can consume from it; BRPOP hands each item to exactly one
// consumer per delivery.
type Redis struct {
	client *redis.Client
	key    string
	log    *zap.Logger
}

// NewRedis connects to redis and verifies the connection
func NewRedis(addr string, db int, key string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log := zap.L().With(zap.String("component", "queue"))
	log.Info("Redis queue connected",
		zap.String("addr", addr),
		zap.String("key", key))

	return &Redis{client: client, key: key, log: log}, nil
}

// Enqueue pushes the item onto the list
func (q *Redis) Enqueue(ctx context.Context, item model.WorkItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

// Dequeue blocks until an item is available or ctx ends
func (q *Redis) Dequeue(ctx context.Context) (model.WorkItem, error) {
	for {
		vals, err := q.client.BRPop(ctx, popTimeout, q.key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return model.WorkItem{}, ctx.Err()
			}
			return model.WorkItem{}, err
		}

		var item model.WorkItem
		if err := json.Unmarshal([]byte(vals[1]), &item); err != nil {
			// drop the malformed payload, keep consuming
			q.log.Error("Discarding malformed queue payload",
				zap.String("payload", vals[1]),
				zap.Error(err))
			continue
		}
		return item, nil
	}
}

// Close closes the redis connection
func (q *Redis) Close() error {
	return q.client.Close()
}
