package counter

import (
	"context"
	"time"

	"tickcast/server/internal/logging"
)

// Publisher receives each tick event as it is produced.
type Publisher interface {
	Publish(event TickEvent)
}

// Ticker increments the shared counter on a fixed period and publishes the
// resulting tick event to the configured publisher.
type Ticker struct {
	counter   *Counter
	publisher Publisher
	interval  time.Duration
	now       func() time.Time
	logger    *logging.Logger
}

// NewTicker wires the counter to the publisher at the given cadence.
func NewTicker(c *Counter, p Publisher, interval time.Duration, logger *logging.Logger) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = logging.L()
	}
	return &Ticker{
		counter:   c,
		publisher: p,
		interval:  interval,
		now:       time.Now,
		logger:    logger,
	}
}

// Run increments and publishes until the context is cancelled. Intended to be
// launched once at startup and left running for the process lifetime.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			value := t.counter.Increment()
			event := TickEvent{Value: value, Timestamp: t.now().UnixMilli()}
			t.publisher.Publish(event)
			t.logger.Debug("tick published", logging.Int64("value", value))
		}
	}
}
