package pubsub

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	ps := New()

	ch1 := ps.Subscribe()
	ch2 := ps.Subscribe()
	if ps.SubscriberCount() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", ps.SubscriberCount())
	}

	ps.Unsubscribe(ch1)
	if ps.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber after unsubscribe, got %d", ps.SubscriberCount())
	}

	// Verify channel is closed
	select {
	case _, ok := <-ch1:
		if ok {
			t.Error("channel should be closed after unsubscribe")
		}
	default:
		t.Error("channel should be closed and readable")
	}

	ps.Publish(Event{Type: "test"})
	select {
	case <-ch2:
	case <-time.After(100 * time.Millisecond):
		t.Error("remaining subscriber should receive events")
	}
}

func TestUnsubscribeNonexistent(t *testing.T) {
	ps := New()
	ch := make(chan Event, 1)

	// Should not panic or close a channel it does not own
	ps.Unsubscribe(ch)
	ch <- Event{Type: "still-open"}
}

func TestPublishDropsWhenChannelFull(t *testing.T) {
	ps := New()
	ch := ps.Subscribe()

	for i := 0; i < 40; i++ {
		ps.Publish(Event{Type: "fill"})
	}

	if got := len(ch); got != cap(ch) {
		t.Errorf("expected %d buffered events, got %d", cap(ch), got)
	}
}

func TestConcurrentSubscribeUnsubscribe(t *testing.T) {
	ps := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ch := ps.Subscribe()
			time.Sleep(time.Millisecond)
			ps.Unsubscribe(ch)
		}()
		go func() {
			defer wg.Done()
			ps.Publish(Event{Type: "concurrent"})
		}()
	}
	wg.Wait()

	if ps.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", ps.SubscriberCount())
	}
}

// fakeBus records published events and echoes them to its subscribers,
// like a shared NATS subject does.
type fakeBus struct {
	mu          sync.Mutex
	published   []Event
	subscribers []chan Event
}

func (b *fakeBus) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *fakeBus) Subscribe() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, 16)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

func (b *fakeBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subscribers {
		if sub == ch {
			close(ch)
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

func (b *fakeBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func TestPublishGoesThroughUpstream(t *testing.T) {
	bus := &fakeBus{}
	ps := NewWithUpstream(bus)
	ch := ps.Subscribe()

	ps.Publish(InvalidateEvent("instance-a", []string{"teamCoach", "1"}))

	if bus.count() != 1 {
		t.Errorf("expected 1 event on upstream, got %d", bus.count())
	}

	select {
	case ev := <-ch:
		key, origin, ok := ev.Invalidation()
		if !ok || origin != "instance-a" || len(key) != 2 || key[1] != "1" {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event echoed by upstream")
	}
}

func TestUpstreamEventsReachLocalSubscribers(t *testing.T) {
	bus := &fakeBus{}
	ps := NewWithUpstream(bus)
	ch1 := ps.Subscribe()
	ch2 := ps.Subscribe()

	// Simulate another instance publishing on the shared bus
	bus.Publish(Event{Type: "external:event"})

	for i, ch := range []chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != "external:event" {
				t.Errorf("subscriber %d: unexpected type %s", i, ev.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("subscriber %d: timeout waiting for event", i)
		}
	}
}

func TestInvalidationSurvivesJSON(t *testing.T) {
	ev := InvalidateEvent("instance-b", []string{"Teams", "3"})

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	key, origin, ok := decoded.Invalidation()
	if !ok {
		t.Fatal("decoded event should be an invalidation")
	}
	if origin != "instance-b" || len(key) != 2 || key[0] != "Teams" || key[1] != "3" {
		t.Errorf("unexpected decoded invalidation %v from %q", key, origin)
	}
}

func TestInvalidationRejectsOtherEvents(t *testing.T) {
	tests := []Event{
		{Type: "chat:add"},
		{Type: EventInvalidate},
		{Type: EventInvalidate, Payload: map[string]interface{}{"key": "teamCoach"}},
		{Type: EventInvalidate, Payload: map[string]interface{}{"key": []interface{}{"teamCoach", 1.0}}},
	}

	for i, ev := range tests {
		if _, _, ok := ev.Invalidation(); ok {
			t.Errorf("case %d: expected not ok for %+v", i, ev)
		}
	}
}
