package lease

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/binder/pkg/lifecycle"
)

// Only the owner may extend or delete its key.
var (
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

type redisLease struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedis creates a lease System from an existing Redis client.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) System {
	return &redisLease{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *redisLease) key(k string) string {
	return r.prefix + k
}

func (r *redisLease) Start(lc *lifecycle.Coordinator) error {
	r.logger.Info("starting lease system")

	lc.OnStartup(func() {
		ctx, cancel := context.WithTimeout(lc.Context(), 5*time.Second)
		defer cancel()

		if err := r.client.Ping(ctx).Err(); err != nil {
			r.logger.Error("redis ping failed", "error", err)
			return
		}
		r.logger.Info("lease store connected")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := r.client.Close(); err != nil {
			r.logger.Error("redis close failed", "error", err)
			return
		}
		r.logger.Info("lease store closed")
	})

	return nil
}

func (r *redisLease) Acquire(ctx context.Context, key, owner string) error {
	ok, err := r.client.SetNX(ctx, r.key(key), owner, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if ok {
		return nil
	}
	return r.Refresh(ctx, key, owner)
}

func (r *redisLease) Refresh(ctx context.Context, key, owner string) error {
	n, err := refreshScript.Run(ctx, r.client, []string{r.key(key)}, owner, r.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("refresh lease %s: %w", key, err)
	}
	if n == 0 {
		return ErrHeld
	}
	return nil
}

func (r *redisLease) Release(ctx context.Context, key, owner string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.key(key)}, owner).Err(); err != nil {
		return fmt.Errorf("release lease %s: %w", key, err)
	}
	return nil
}

func (r *redisLease) TTL() time.Duration {
	return r.ttl
}
