package rules

import (
	"testing"
)

func TestEventBusSubscribeTyped(t *testing.T) {
	bus := NewEventBus()

	knockouts := 0
	ended := 0

	handle1 := bus.SubscribeTyped(EventKnockout, func(e Event) {
		knockouts++
	})
	bus.SubscribeTyped(EventMatchEnded, func(e Event) {
		ended++
	})

	bus.Publish(NewEvent(EventKnockout, "m1", "p1", 3))
	if knockouts != 1 {
		t.Fatalf("expected knockout count 1, got %d", knockouts)
	}
	if ended != 0 {
		t.Fatalf("expected match ended count 0, got %d", ended)
	}

	bus.Publish(NewEvent(EventMatchEnded, "m1", "p1", 3))
	if ended != 1 {
		t.Fatalf("expected match ended count 1, got %d", ended)
	}

	bus.Unsubscribe(handle1)
	bus.Publish(NewEvent(EventKnockout, "m1", "p2", 4))
	if knockouts != 1 {
		t.Fatalf("expected knockout count still 1 after unsubscribe, got %d", knockouts)
	}
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus()

	count := 0
	handle := bus.Subscribe(func(e Event) {
		count++
	})

	bus.PublishBatch([]Event{
		NewEvent(EventActionApplied, "m1", "p1", 1),
		NewEvent(EventCoinFlipPending, "m1", "p1", 1),
		NewEvent(EventTurnStarted, "m1", "p2", 2),
	})
	if count != 3 {
		t.Fatalf("expected all event count 3, got %d", count)
	}

	bus.Unsubscribe(handle)
	bus.Publish(NewEvent(EventActionApplied, "m1", "p2", 2))
	if count != 3 {
		t.Fatalf("expected all event count 3 after unsubscribe, got %d", count)
	}
}

func TestEventBusNilListener(t *testing.T) {
	bus := NewEventBus()
	if h := bus.Subscribe(nil); h != -1 {
		t.Fatalf("expected -1 handle for nil listener, got %d", h)
	}
	if h := bus.SubscribeTyped(EventKnockout, nil); h != -1 {
		t.Fatalf("expected -1 handle for nil typed listener, got %d", h)
	}
}
