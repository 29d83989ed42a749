// Package cache provides Redis caching utilities for the application.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"guildhall/internal/middleware"
	"guildhall/internal/observability"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// metricsHook counts failed commands. redis.Nil is a miss, not a failure.
type metricsHook struct{}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// redisOptions accepts a redis:// or rediss:// URL or a bare host:port.
func redisOptions(addr string) (*redis.Options, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("REDIS_URL not set")
	}
	if !strings.Contains(addr, "://") {
		return &redis.Options{Addr: addr}, nil
	}
	return redis.ParseURL(addr)
}

// InitRedis connects the shared client. Any failure leaves the client nil:
// caching, WS tickets and realtime fan-out then switch off and the API keeps serving.
func InitRedis(addr string) {
	client = nil

	opts, err := redisOptions(addr)
	if err != nil {
		middleware.Logger.Warn("continuing without redis", slog.String("reason", err.Error()))
		return
	}

	c := redis.NewClient(opts)
	c.AddHook(metricsHook{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		middleware.Logger.Warn("continuing without redis",
			slog.String("addr", opts.Addr), slog.String("reason", err.Error()))
		_ = c.Close()
		return
	}

	middleware.Logger.Info("redis connected", slog.String("addr", opts.Addr), slog.Int("db", opts.DB))
	client = c
}

// SetClient replaces the shared client. Used by tests and tools.
func SetClient(c *redis.Client) {
	if c != nil {
		c.AddHook(metricsHook{})
	}
	client = c
}

// GetClient returns the current Redis client instance, or nil.
func GetClient() *redis.Client {
	return client
}
