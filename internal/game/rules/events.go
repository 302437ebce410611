package rules

import (
	"sync"
	"time"
)

// EventType indicates the category of a match event.
type EventType string

const (
	// EventActionApplied fires after every committed action.
	EventActionApplied EventType = "ACTION_APPLIED"
	// EventKnockout fires once per knocked out pokemon.
	EventKnockout EventType = "KNOCKOUT"
	// EventCoinFlipPending fires when an action pauses on a coin flip.
	EventCoinFlipPending EventType = "COIN_FLIP_PENDING"
	// EventTurnStarted fires when END_TURN hands the turn over.
	EventTurnStarted EventType = "TURN_STARTED"
	// EventMatchEnded fires when an action ends the match.
	EventMatchEnded EventType = "MATCH_ENDED"
)

// Event is a committed change other subsystems may react to. Amount carries the
// damage an attack dealt to the defending pokemon on its ACTION_APPLIED event and
// on the KNOCKOUT of that pokemon.
type Event struct {
	Type       EventType
	MatchID    string
	PlayerID   string
	ActionID   string
	ActionType string
	TargetID   string
	Amount     int
	Turn       int
	Timestamp  time.Time
	Metadata   map[string]string
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
// Listeners must not publish or subscribe from inside the callback.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}
	for _, listener := range bus.typedListeners[event.Type] {
		listener.Callback(event)
	}
}

// PublishBatch publishes events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}

// NewEvent creates an event with common fields populated.
func NewEvent(eventType EventType, matchID, playerID string, turn int) Event {
	return Event{
		Type:      eventType,
		MatchID:   matchID,
		PlayerID:  playerID,
		Turn:      turn,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]string),
	}
}
