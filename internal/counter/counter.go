package counter

import "sync/atomic"

// Counter is the process-wide shared value mutated only by the Ticker.
// Reads are lock-free and may happen from any goroutine.
type Counter struct {
	value atomic.Int64
}

// New returns a counter starting at zero.
func New() *Counter {
	return &Counter{}
}

// Increment advances the counter by one and returns the new value.
func (c *Counter) Increment() int64 {
	return c.value.Add(1)
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	return c.value.Load()
}

// TickEvent is the immutable value published once per tick. Timestamp is the
// wall-clock observation time in epoch milliseconds.
type TickEvent struct {
	Value     int64 `json:"value"`
	Timestamp int64 `json:"timestamp"`
}
