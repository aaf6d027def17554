// Package gate provides keyed single-holder gates.
//
// A Gate serializes work per key: at most one holder per key at a time,
// with waiters blocking until release or context cancellation. Non-blocking
// callers use TryAcquire. Observers that only need the current holder to
// finish use Wait, which never takes the slot, so it cannot make a
// concurrent TryAcquire fail.
package gate

import (
	"context"
	"sync"
)

// slot exists only while a key is held. done is closed on release.
type slot struct {
	done chan struct{}
}

// Gate is a set of per-key mutual exclusion slots. The zero value is not usable; call New.
type Gate[K comparable] struct {
	mu    sync.Mutex
	slots map[K]*slot
}

// New creates an empty Gate.
func New[K comparable]() *Gate[K] {
	return &Gate[K]{slots: make(map[K]*slot)}
}

// Acquire blocks until the gate for key is held or ctx is done.
// The returned release func may be called more than once.
func (g *Gate[K]) Acquire(ctx context.Context, key K) (func(), error) {
	for {
		release, busy := g.take(key)
		if release != nil {
			return release, nil
		}
		select {
		case <-busy:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TryAcquire holds the gate for key if it is free. It never blocks.
func (g *Gate[K]) TryAcquire(key K) (func(), bool) {
	release, _ := g.take(key)
	return release, release != nil
}

// Wait blocks until no holder has the gate for key. It returns without
// holding the gate.
func (g *Gate[K]) Wait(ctx context.Context, key K) error {
	g.mu.Lock()
	s, ok := g.slots[key]
	g.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Held reports whether key currently has a holder.
func (g *Gate[K]) Held(key K) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.slots[key]
	return ok
}

// Len reports the number of held keys.
func (g *Gate[K]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.slots)
}

// take claims key if it is free. Otherwise it returns the current
// holder's done channel.
func (g *Gate[K]) take(key K) (func(), <-chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if s, ok := g.slots[key]; ok {
		return nil, s.done
	}
	s := &slot{done: make(chan struct{})}
	g.slots[key] = s

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.slots, key)
			g.mu.Unlock()
			close(s.done)
		})
	}, nil
}
