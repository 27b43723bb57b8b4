package ratelimit

import (
	"context"
	"time"

	"github.com/gomodule/redigo/redis"
)

// RedisLimiter is a fixed-window limiter backed by Redis, so the budget is
// shared across server instances. The window lives as a counter with a TTL:
// the first INCR in a window sets the expiry, later ones only bump the count.
type RedisLimiter struct {
	pool   *redis.Pool
	prefix string
	limit  int
	period time.Duration
}

// NewRedisPool builds a connection pool for the given address.
func NewRedisPool(addr string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     10,
		IdleTimeout: 240 * time.Second,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", addr)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// NewRedisLimiter returns a limiter allowing limit calls per period per key.
// The prefix namespaces counters so several limiters can share one Redis.
func NewRedisLimiter(pool *redis.Pool, prefix string, limit int, period time.Duration) *RedisLimiter {
	return &RedisLimiter{pool: pool, prefix: prefix, limit: limit, period: period}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	conn, err := l.pool.GetContext(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	redisKey := l.prefix + ":" + key

	count, err := redis.Int(conn.Do("INCR", redisKey))
	if err != nil {
		return false, err
	}
	if count == 1 {
		if _, err := conn.Do("EXPIRE", redisKey, int(l.period.Seconds())); err != nil {
			return false, err
		}
	}

	return count <= l.limit, nil
}
