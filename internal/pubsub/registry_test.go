package pubsub

import (
	"sync"
	"testing"
	"time"

	"tickcast/server/internal/counter"
	"tickcast/server/internal/logging"
)

func TestPublishReachesEverySubscriber(t *testing.T) {
	registry := NewRegistry(logging.NewTestLogger())

	const subscribers = 8
	subs := make([]*Subscriber, 0, subscribers)
	for i := 0; i < subscribers; i++ {
		sub := NewSubscriber("conn", 4)
		registry.Register(sub)
		subs = append(subs, sub)
	}

	event := counter.TickEvent{Value: 42, Timestamp: time.Now().UnixMilli()}
	registry.Publish(event)

	for i, sub := range subs {
		select {
		case got := <-sub.Events():
			if got.Value != 42 {
				t.Fatalf("subscriber %d received value %d, want 42", i, got.Value)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}
	if got := registry.Broadcasts(); got != 1 {
		t.Fatalf("expected one recorded broadcast, got %d", got)
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	registry := NewRegistry(logging.NewTestLogger())
	sub := NewSubscriber("conn", 1)

	registry.Register(sub)
	if registry.Len() != 1 {
		t.Fatalf("expected one member, got %d", registry.Len())
	}

	registry.Unregister(sub)
	if registry.Len() != 0 {
		t.Fatalf("expected empty registry, got %d members", registry.Len())
	}
	// A second removal of the same handle must be a no-op, not a panic.
	registry.Unregister(sub)

	if _, open := <-sub.Events(); open {
		t.Fatal("expected channel closed after unregister")
	}
}

func TestUnregisterAbsentSubscriberIsNoOp(t *testing.T) {
	registry := NewRegistry(logging.NewTestLogger())
	registry.Unregister(NewSubscriber("ghost", 1))
	registry.Unregister(nil)
	if registry.Len() != 0 {
		t.Fatalf("expected empty registry, got %d members", registry.Len())
	}
}

func TestSlowSubscriberIsEvicted(t *testing.T) {
	registry := NewRegistry(logging.NewTestLogger())
	slow := NewSubscriber("slow", 1)
	healthy := NewSubscriber("healthy", 4)
	registry.Register(slow)
	registry.Register(healthy)

	// First publish fills the slow buffer, second overflows and evicts.
	registry.Publish(counter.TickEvent{Value: 1})
	registry.Publish(counter.TickEvent{Value: 2})

	if registry.Len() != 1 {
		t.Fatalf("expected slow subscriber evicted, registry has %d members", registry.Len())
	}
	for want := int64(1); want <= 2; want++ {
		select {
		case got := <-healthy.Events():
			if got.Value != want {
				t.Fatalf("healthy subscriber got value %d, want %d", got.Value, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("healthy subscriber missed event %d", want)
		}
	}

	// The evicted channel drains its single buffered event and then closes.
	if got := <-slow.Events(); got.Value != 1 {
		t.Fatalf("evicted subscriber should keep its buffered event, got %d", got.Value)
	}
	if _, open := <-slow.Events(); open {
		t.Fatal("expected evicted subscriber channel closed")
	}
}

func TestConcurrentChurnIsSafe(t *testing.T) {
	registry := NewRegistry(logging.NewTestLogger())

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		var value int64
		for {
			select {
			case <-stop:
				return
			default:
				value++
				registry.Publish(counter.TickEvent{Value: value})
			}
		}
	}()

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sub := NewSubscriber("churn", 2)
				registry.Register(sub)
				registry.Unregister(sub)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	close(stop)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent churn deadlocked")
	}
	if registry.Len() != 0 {
		t.Fatalf("expected registry drained after churn, got %d members", registry.Len())
	}
}
