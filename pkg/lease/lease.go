// Package lease provides exclusive, expiring ownership of named resources.
//
// The Redis implementation lets multiple server replicas agree on a single
// owner per key. Ownership is tied to an owner token; only the holder can
// refresh or release it, and an abandoned lease expires after its TTL.
package lease

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/binder/pkg/lifecycle"
)

// ErrHeld indicates another owner holds the lease.
var ErrHeld = errors.New("lease held by another owner")

// System grants and releases leases.
type System interface {
	// Start registers connection checks and shutdown cleanup with the lifecycle coordinator.
	Start(lc *lifecycle.Coordinator) error
	// Acquire takes the lease for key on behalf of owner. Returns ErrHeld if
	// a different owner holds it. Re-acquiring your own lease extends it.
	Acquire(ctx context.Context, key, owner string) error
	// Refresh extends the lease. Returns ErrHeld if owner no longer holds it.
	Refresh(ctx context.Context, key, owner string) error
	// Release drops the lease if owner holds it. Releasing a lost lease is not an error.
	Release(ctx context.Context, key, owner string) error
	// TTL reports the lease duration.
	TTL() time.Duration
}

// New returns a Redis-backed System when cfg.Enabled, otherwise a
// process-local System that grants every request.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	logger = logger.With("system", "lease")

	if !cfg.Enabled {
		return &local{ttl: cfg.TTLDuration(), logger: logger}, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	return NewRedis(redis.NewClient(opts), cfg.Prefix, cfg.TTLDuration(), logger), nil
}

type local struct {
	ttl    time.Duration
	logger *slog.Logger
}

func (l *local) Start(lc *lifecycle.Coordinator) error {
	l.logger.Info("lease coordination disabled, using process-local leases")
	return nil
}

func (l *local) Acquire(ctx context.Context, key, owner string) error { return nil }
func (l *local) Refresh(ctx context.Context, key, owner string) error { return nil }
func (l *local) Release(ctx context.Context, key, owner string) error { return nil }
func (l *local) TTL() time.Duration                                    { return l.ttl }
