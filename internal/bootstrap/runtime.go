// Package bootstrap wires external dependencies at process start.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kollektiv/internal/config"
	"kollektiv/internal/store/mongostore"

	"github.com/redis/go-redis/v9"
)

// InitRuntime connects to Mongo and Redis. Redis is optional: an unreachable
// instance yields a nil client and the app runs without real-time fan-out.
func InitRuntime(ctx context.Context, cfg *config.Config) (*mongostore.Store, *redis.Client, error) {
	st, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, nil, fmt.Errorf("document store connection failed: %w", err)
	}

	return st, initRedis(cfg.RedisURL), nil
}

func initRedis(addr string) *redis.Client {
	if addr == "" {
		return nil
	}

	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			slog.Warn("invalid REDIS_URL, continuing without real-time fan-out", "addr", addr, "err", err)
			return nil
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unreachable, continuing without real-time fan-out", "err", err)
		_ = client.Close()
		return nil
	}

	slog.Info("redis connected")
	return client
}
