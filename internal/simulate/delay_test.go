package simulate

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"tickcast/server/internal/config"
	"tickcast/server/internal/counter"
)

func TestCooperativeLookupWaitsAndSnapshots(t *testing.T) {
	c := counter.New()
	c.Increment()
	c.Increment()

	sim := New(config.DelayCooperative, c, 5*time.Millisecond)
	if sim.Mode() != config.DelayCooperative {
		t.Fatalf("unexpected mode %q", sim.Mode())
	}

	start := time.Now()
	result, err := sim.Lookup(context.Background())
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Fatalf("lookup returned after %v, want at least 5ms", elapsed)
	}
	if result.Value != 2 {
		t.Fatalf("expected counter snapshot 2, got %d", result.Value)
	}
	if result.Timestamp <= 0 {
		t.Fatalf("expected wall-clock timestamp, got %d", result.Timestamp)
	}
}

// Streaming handlers pass their live request context into the initial
// snapshot lookup, so a departed stream client unblocks the wait. Poll
// handlers detach the context instead and always run to completion.
func TestCooperativeLookupUnblocksWhenStreamContextEnds(t *testing.T) {
	sim := New(config.DelayCooperative, counter.New(), time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := sim.Lookup(ctx); err == nil {
		t.Fatal("expected context error from cancelled lookup")
	}
}

func TestBlockingLookupSpinsForMinimumElapsed(t *testing.T) {
	sim := New(config.DelayBlocking, counter.New(), 5*time.Millisecond)
	if sim.Mode() != config.DelayBlocking {
		t.Fatalf("unexpected mode %q", sim.Mode())
	}

	start := time.Now()
	if _, err := sim.Lookup(context.Background()); err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Fatalf("busy wait finished after %v, want a measured minimum of 5ms", elapsed)
	}
}

func TestBlockingLookupIgnoresCancellation(t *testing.T) {
	sim := New(config.DelayBlocking, counter.New(), 2*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The blocking variant is deliberately not a suspension point.
	if _, err := sim.Lookup(ctx); err != nil {
		t.Fatalf("blocking lookup must run to completion, got %v", err)
	}
}

// On a single scheduler thread, concurrent busy-wait lookups serialise while
// cooperative ones overlap. The contrast is the demo's entire reason to exist.
func TestConcurrentLookupsContrastUnderSingleThread(t *testing.T) {
	old := runtime.GOMAXPROCS(1)
	defer runtime.GOMAXPROCS(old)

	const n = 4
	const delay = 5 * time.Millisecond
	run := func(sim Simulator) time.Duration {
		var wg sync.WaitGroup
		start := time.Now()
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = sim.Lookup(context.Background())
			}()
		}
		wg.Wait()
		return time.Since(start)
	}

	blockingElapsed := run(New(config.DelayBlocking, counter.New(), delay))
	cooperativeElapsed := run(New(config.DelayCooperative, counter.New(), delay))

	if blockingElapsed < n*delay {
		t.Fatalf("blocking lookups overlapped: %v elapsed, want at least %v", blockingElapsed, n*delay)
	}
	if cooperativeElapsed >= blockingElapsed {
		t.Fatalf("cooperative lookups did not overlap: %v vs blocking %v", cooperativeElapsed, blockingElapsed)
	}
}

func TestSequentialLookupsAccumulateDelay(t *testing.T) {
	sim := New(config.DelayCooperative, counter.New(), 5*time.Millisecond)

	const n = 4
	start := time.Now()
	for i := 0; i < n; i++ {
		if _, err := sim.Lookup(context.Background()); err != nil {
			t.Fatalf("lookup %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < n*5*time.Millisecond {
		t.Fatalf("sequential lookups took %v, want at least %v", elapsed, n*5*time.Millisecond)
	}
}
