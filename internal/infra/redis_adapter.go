// Package infra provides concrete infrastructure adapters for Redis.
//
// The adapter wraps go-redis v9 and implements the KV and PubSub interfaces
// consumed by the web-search cache, the cost meter, the domain-reputation
// cache, the progress publisher, and the task queue. When Redis is not
// configured the app falls back to the in-memory implementations.
package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV is the minimal key-value surface the tools need: TTL'd values plus
// atomic counters for the cost meter.
type KV interface {
	// Get returns (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error

	// IncrByFloat atomically increments a float counter and returns the
	// new value.
	IncrByFloat(ctx context.Context, key string, delta float64) (float64, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	// ExpireNX sets a TTL only if the key has none yet.
	ExpireNX(ctx context.Context, key string, ttl time.Duration) error
}

// PubSub is the fan-out surface the progress publisher needs.
type PubSub interface {
	Publish(ctx context.Context, channel string, message []byte) error

	// Subscribe registers a handler for messages on a channel and returns
	// an unsubscribe function.
	Subscribe(ctx context.Context, channel string, handler func([]byte)) (unsubscribe func(), err error)
}

// Queue is the broker surface the task queue needs: blocking list pops plus
// the reliable-pop pair (BLMove into a processing list, LRem to ack).
type Queue interface {
	LPush(ctx context.Context, key string, value []byte) error
	// BRPop blocks up to timeout for an element; returns (nil, nil) on
	// timeout.
	BRPop(ctx context.Context, timeout time.Duration, key string) ([]byte, error)
	// BLMove atomically moves the tail of src to the head of dst, blocking
	// up to timeout; returns (nil, nil) on timeout.
	BLMove(ctx context.Context, src, dst string, timeout time.Duration) ([]byte, error)
	// LRem removes one occurrence of value from the list.
	LRem(ctx context.Context, key string, value []byte) error
}

// GoRedisAdapter wraps go-redis v9 and implements KV, PubSub, and Queue.
type GoRedisAdapter struct {
	rdb *redis.Client
}

// NewGoRedisAdapter connects to Redis and verifies connectivity with a ping.
func NewGoRedisAdapter(addr, password string, db int) (*GoRedisAdapter, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     20,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed (%s): %w", addr, err)
	}

	slog.Info("[Infra] Redis connected", "addr", addr, "db", db)
	return &GoRedisAdapter{rdb: rdb}, nil
}

// Close shuts down the underlying redis client.
func (a *GoRedisAdapter) Close() error { return a.rdb.Close() }

func (a *GoRedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := a.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return val, err
}

func (a *GoRedisAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return a.rdb.Set(ctx, key, value, ttl).Err()
}

func (a *GoRedisAdapter) Del(ctx context.Context, keys ...string) error {
	return a.rdb.Del(ctx, keys...).Err()
}

func (a *GoRedisAdapter) IncrByFloat(ctx context.Context, key string, delta float64) (float64, error) {
	return a.rdb.IncrByFloat(ctx, key, delta).Result()
}

func (a *GoRedisAdapter) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return a.rdb.IncrBy(ctx, key, delta).Result()
}

func (a *GoRedisAdapter) ExpireNX(ctx context.Context, key string, ttl time.Duration) error {
	return a.rdb.ExpireNX(ctx, key, ttl).Err()
}

func (a *GoRedisAdapter) Publish(ctx context.Context, channel string, message []byte) error {
	return a.rdb.Publish(ctx, channel, message).Err()
}

// Subscribe registers a handler for messages on a Redis Pub/Sub channel.
func (a *GoRedisAdapter) Subscribe(ctx context.Context, channel string, handler func([]byte)) (func(), error) {
	sub := a.rdb.Subscribe(ctx, channel)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", channel, err)
	}

	ch := sub.Channel()
	go func() {
		for msg := range ch {
			handler([]byte(msg.Payload))
		}
	}()

	return func() { sub.Close() }, nil
}

func (a *GoRedisAdapter) LPush(ctx context.Context, key string, value []byte) error {
	return a.rdb.LPush(ctx, key, value).Err()
}

func (a *GoRedisAdapter) BRPop(ctx context.Context, timeout time.Duration, key string) ([]byte, error) {
	res, err := a.rdb.BRPop(ctx, timeout, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply length %d", len(res))
	}
	return []byte(res[1]), nil
}

func (a *GoRedisAdapter) BLMove(ctx context.Context, src, dst string, timeout time.Duration) ([]byte, error) {
	res, err := a.rdb.BLMove(ctx, src, dst, "RIGHT", "LEFT", timeout).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(res), nil
}

func (a *GoRedisAdapter) LRem(ctx context.Context, key string, value []byte) error {
	return a.rdb.LRem(ctx, key, 1, value).Err()
}
