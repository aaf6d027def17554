package gate_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/binder/pkg/gate"
)

func TestAcquireSerializesPerKey(t *testing.T) {
	g := gate.New[string]()

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			release, err := g.Acquire(context.Background(), "section-1")
			if err != nil {
				t.Error(err)
				return
			}
			defer release()

			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
		})
	}
	wg.Wait()

	if peak.Load() != 1 {
		t.Errorf("peak concurrent holders = %d, want 1", peak.Load())
	}
	if g.Len() != 0 {
		t.Errorf("slots leaked: %d", g.Len())
	}
}

func TestIndependentKeys(t *testing.T) {
	g := gate.New[string]()

	r1, err := g.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	defer r1()

	r2, ok := g.TryAcquire("b")
	if !ok {
		t.Fatal("key b should be free while a is held")
	}
	r2()
}

func TestTryAcquireBusy(t *testing.T) {
	g := gate.New[int]()

	release, ok := g.TryAcquire(7)
	if !ok {
		t.Fatal("first TryAcquire should succeed")
	}
	if !g.Held(7) {
		t.Error("Held should report true while held")
	}

	if _, ok := g.TryAcquire(7); ok {
		t.Error("second TryAcquire should fail while held")
	}

	release()
	release()

	if g.Held(7) {
		t.Error("Held should report false after release")
	}
	if r, ok := g.TryAcquire(7); !ok {
		t.Error("TryAcquire should succeed after release")
	} else {
		r()
	}
}

func TestAcquireContextCancel(t *testing.T) {
	g := gate.New[string]()

	release, _ := g.TryAcquire("k")
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := g.Acquire(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire error = %v, want deadline exceeded", err)
	}
}

func TestWaitObservesRelease(t *testing.T) {
	g := gate.New[string]()
	release, _ := g.TryAcquire("k")

	done := make(chan error, 1)
	go func() { done <- g.Wait(context.Background(), "k") }()

	select {
	case <-done:
		t.Fatal("Wait returned while gate was held")
	case <-time.After(20 * time.Millisecond):
	}

	release()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after release")
	}

	if g.Held("k") {
		t.Error("Wait must not leave the gate held")
	}
}

func TestWaitDoesNotBlockTryAcquire(t *testing.T) {
	g := gate.New[string]()
	release, _ := g.TryAcquire("k")

	waiting := make(chan error, 1)
	go func() { waiting <- g.Wait(context.Background(), "k") }()
	time.Sleep(10 * time.Millisecond)
	release()

	if err := <-waiting; err != nil {
		t.Fatalf("Wait: %v", err)
	}

	// A waiter on a free key returns without ever holding it.
	for range 100 {
		done := make(chan struct{})
		go func() {
			defer close(done)
			g.Wait(context.Background(), "k")
		}()
		r, ok := g.TryAcquire("k")
		if !ok {
			t.Fatal("TryAcquire failed while only a Wait was in progress")
		}
		r()
		<-done
	}
}

func TestWaitContextCancel(t *testing.T) {
	g := gate.New[string]()
	release, _ := g.TryAcquire("k")
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := g.Wait(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait error = %v, want deadline exceeded", err)
	}
	if !g.Held("k") {
		t.Error("cancelled Wait must not affect the holder")
	}
}
