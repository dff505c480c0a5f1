package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mercedmeals/feedclient/session"
)

// Redis provides durable session storage in Redis.
type Redis struct {
	cli *redis.Client
}

// Connect connects to the Redis server and pings the server to ensure the
// connection is working.
func Connect(ctx context.Context, addr string) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{
		cli: cli,
	}, nil
}

const sessionPrefix = "feedclient:session"

func sessionKey(key string) string {
	return fmt.Sprintf("%s:%s", sessionPrefix, key)
}

// Get returns the value stored under key, or session.ErrNotFound.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.cli.Get(ctx, sessionKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", session.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get: %w", err)
	}
	return v, nil
}

// Set stores value under key without expiry. The backend decides when a
// token stops being valid.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.cli.Set(ctx, sessionKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	return nil
}

// Delete removes all keys in a single transaction so that the token and the
// user summary disappear together.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Del(ctx, sessionKey(k))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.cli.Close()
}
