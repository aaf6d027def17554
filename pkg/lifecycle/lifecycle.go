// Package lifecycle coordinates startup, background, and shutdown hooks for the service.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ReadinessChecker reports whether a subsystem is ready to serve traffic.
type ReadinessChecker interface {
	Ready() bool
}

// Coordinator manages startup, background, and shutdown hooks for the application lifecycle.
type Coordinator struct {
	ctx          context.Context
	cancel       context.CancelFunc
	startupWg    sync.WaitGroup
	backgroundWg sync.WaitGroup
	shutdownWg   sync.WaitGroup
	ready        bool
	readyMu      sync.RWMutex
	drainMu      sync.Mutex
	drain        []func(ctx context.Context)
}

// New creates a Coordinator with a cancellable context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context returns the coordinator's context, cancelled on shutdown.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup registers a function to run concurrently during startup.
func (c *Coordinator) OnStartup(fn func()) {
	c.startupWg.Go(fn)
}

// OnBackground runs fn for the lifetime of the coordinator.
// fn must return once ctx is cancelled; Shutdown waits for it before
// running out of time.
func (c *Coordinator) OnBackground(fn func(ctx context.Context)) {
	c.backgroundWg.Go(func() {
		fn(c.ctx)
	})
}

// OnShutdown registers a function to run concurrently during shutdown.
// Shutdown hooks should block on <-c.Context().Done() before executing cleanup.
func (c *Coordinator) OnShutdown(fn func()) {
	c.shutdownWg.Go(fn)
}

// OnDrain registers fn to run at the start of Shutdown, before the
// coordinator context is cancelled. Drain hooks run concurrently and may
// still use resources that shutdown hooks release. ctx carries the
// shutdown deadline.
func (c *Coordinator) OnDrain(fn func(ctx context.Context)) {
	c.drainMu.Lock()
	defer c.drainMu.Unlock()
	c.drain = append(c.drain, fn)
}

// Ready returns true after all startup hooks have completed.
func (c *Coordinator) Ready() bool {
	c.readyMu.RLock()
	defer c.readyMu.RUnlock()
	return c.ready
}

// WaitForStartup blocks until all startup hooks have completed and sets the ready flag.
func (c *Coordinator) WaitForStartup() {
	c.startupWg.Wait()
	c.readyMu.Lock()
	c.ready = true
	c.readyMu.Unlock()
}

// Shutdown runs drain hooks, cancels the context, and waits for background
// workers and shutdown hooks to complete. The timeout covers all phases.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.readyMu.Lock()
	c.ready = false
	c.readyMu.Unlock()

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), timeout)
	defer cancelDrain()

	c.drainMu.Lock()
	drain := c.drain
	c.drainMu.Unlock()

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, fn := range drain {
			wg.Go(func() { fn(drainCtx) })
		}
		wg.Wait()

		c.cancel()
		c.backgroundWg.Wait()
		c.shutdownWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-drainCtx.Done():
		c.cancel()
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}
