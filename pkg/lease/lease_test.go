package lease_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/binder/pkg/lease"
)

func setupRedis(t *testing.T) (lease.System, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return lease.NewRedis(client, "test:", 30*time.Second, logger), s
}

func TestAcquireExclusive(t *testing.T) {
	l, s := setupRedis(t)
	ctx := context.Background()

	if err := l.Acquire(ctx, "section-1", "alice"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := l.Acquire(ctx, "section-1", "bob"); !errors.Is(err, lease.ErrHeld) {
		t.Errorf("second owner acquire = %v, want ErrHeld", err)
	}
	if err := l.Acquire(ctx, "section-1", "alice"); err != nil {
		t.Errorf("re-acquire by owner: %v", err)
	}

	got, err := s.Get("test:section-1")
	if err != nil || got != "alice" {
		t.Errorf("stored owner = %q, %v", got, err)
	}
}

func TestReleaseOnlyByOwner(t *testing.T) {
	l, s := setupRedis(t)
	ctx := context.Background()

	l.Acquire(ctx, "k", "alice")

	if err := l.Release(ctx, "k", "bob"); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if !s.Exists("test:k") {
		t.Fatal("non-owner release must not delete the lease")
	}

	if err := l.Release(ctx, "k", "alice"); err != nil {
		t.Fatalf("release by owner: %v", err)
	}
	if s.Exists("test:k") {
		t.Error("owner release should delete the lease")
	}

	if err := l.Acquire(ctx, "k", "bob"); err != nil {
		t.Errorf("acquire after release: %v", err)
	}
}

func TestLeaseExpires(t *testing.T) {
	l, s := setupRedis(t)
	ctx := context.Background()

	l.Acquire(ctx, "k", "alice")
	s.FastForward(31 * time.Second)

	if err := l.Refresh(ctx, "k", "alice"); !errors.Is(err, lease.ErrHeld) {
		t.Errorf("refresh after expiry = %v, want ErrHeld", err)
	}
	if err := l.Acquire(ctx, "k", "bob"); err != nil {
		t.Errorf("acquire after expiry: %v", err)
	}
}

func TestRefreshExtends(t *testing.T) {
	l, s := setupRedis(t)
	ctx := context.Background()

	l.Acquire(ctx, "k", "alice")
	s.FastForward(20 * time.Second)

	if err := l.Refresh(ctx, "k", "alice"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	s.FastForward(20 * time.Second)

	if !s.Exists("test:k") {
		t.Error("refreshed lease expired early")
	}
}

func TestDisabledGrantsAll(t *testing.T) {
	cfg := &lease.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	l, err := lease.New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := l.Acquire(ctx, "k", "alice"); err != nil {
		t.Fatal(err)
	}
	if err := l.Acquire(ctx, "k", "bob"); err != nil {
		t.Errorf("disabled leases should not conflict: %v", err)
	}
	if l.TTL() != 2*time.Minute {
		t.Errorf("TTL = %v, want default 2m", l.TTL())
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := &lease.Config{Enabled: true}
	if err := cfg.Finalize(nil); err == nil {
		t.Error("enabled without url should fail")
	}

	cfg = &lease.Config{TTL: "10ms"}
	if err := cfg.Finalize(nil); err == nil {
		t.Error("sub-second ttl should fail")
	}
}
