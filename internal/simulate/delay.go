package simulate

import (
	"context"
	"time"

	"tickcast/server/internal/config"
	"tickcast/server/internal/counter"
)

// Simulator models the external backend lookup: it returns a counter snapshot
// after an artificial delay. The two implementations differ only in how they
// wait, which is the whole point of the demo.
type Simulator interface {
	Lookup(ctx context.Context) (counter.TickEvent, error)
	Mode() config.DelayMode
}

// New selects the simulator implementation for the configured mode.
func New(mode config.DelayMode, c *counter.Counter, delay time.Duration) Simulator {
	if delay <= 0 {
		delay = config.LookupDelay
	}
	if mode == config.DelayBlocking {
		return &blockingSimulator{counter: c, delay: delay, now: time.Now}
	}
	return &cooperativeSimulator{counter: c, delay: delay, now: time.Now}
}

// cooperativeSimulator waits on a timer, suspending only the calling
// goroutine so the scheduler can service other requests meanwhile.
type cooperativeSimulator struct {
	counter *counter.Counter
	delay   time.Duration
	now     func() time.Time
}

func (s *cooperativeSimulator) Mode() config.DelayMode { return config.DelayCooperative }

func (s *cooperativeSimulator) Lookup(ctx context.Context) (counter.TickEvent, error) {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return counter.TickEvent{}, ctx.Err()
	case <-timer.C:
	}
	return counter.TickEvent{Value: s.counter.Value(), Timestamp: s.now().UnixMilli()}, nil
}

// blockingSimulator busy-spins for the full delay. The spin deliberately
// occupies its scheduler slot and ignores the context: with
// TICKCAST_SCHED_THREADS=1 this starves every other in-flight request for the
// duration, which is the congestion pathology the demo exists to exhibit.
type blockingSimulator struct {
	counter *counter.Counter
	delay   time.Duration
	now     func() time.Time
}

func (s *blockingSimulator) Mode() config.DelayMode { return config.DelayBlocking }

func (s *blockingSimulator) Lookup(_ context.Context) (counter.TickEvent, error) {
	start := time.Now()
	// Spin until the measured elapsed time reaches the delay. The guarantee
	// is a minimum elapsed duration, not a scheduled wakeup.
	for time.Since(start) < s.delay {
	}
	return counter.TickEvent{Value: s.counter.Value(), Timestamp: s.now().UnixMilli()}, nil
}
