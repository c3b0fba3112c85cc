package form

import (
	"fmt"
	"sync"
)

// EventType represents the type of change event.
type EventType string

const (
	// EventHidden is emitted when a field's effective hide flag resolves
	// for the first time or flips.
	EventHidden EventType = "hidden"

	// EventExpressionChanges is emitted when any other resolved property
	// materially changes.
	EventExpressionChanges EventType = "expressionChanges"
)

// Event is a structured change record.
type Event struct {
	// Type discriminates hidden flips from generic property changes.
	Type EventType `json:"type"`

	// Field is the node the change happened on.
	Field *Field `json:"-"`

	// Property is the target property path for expressionChanges events.
	// Empty for hidden events.
	Property string `json:"property,omitempty"`

	// Value is the newly resolved value.
	Value interface{} `json:"value"`
}

// EventListener is a function that handles change events.
type EventListener func(event *Event) error

// Notifier dispatches change records to registered listeners, inline and
// in the order changes were computed during a check pass. Delivery is
// strictly synchronous: ordering (hidden-before-visible, traversal order)
// is part of the engine's contract with observers.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventListener
}

// NewNotifier creates a new change notifier.
func NewNotifier() *Notifier {
	return &Notifier{
		listeners: make(map[EventType][]EventListener),
	}
}

// On registers a listener for the specified event type.
func (n *Notifier) On(eventType EventType, listener EventListener) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.listeners[eventType] = append(n.listeners[eventType], listener)
}

// OnAny registers a listener for both event types.
func (n *Notifier) OnAny(listener EventListener) {
	n.On(EventHidden, listener)
	n.On(EventExpressionChanges, listener)
}

// Off removes all listeners for the event type.
func (n *Notifier) Off(eventType EventType) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.listeners, eventType)
}

// ListenerCount returns the number of listeners for an event type.
func (n *Notifier) ListenerCount(eventType EventType) int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return len(n.listeners[eventType])
}

// Emit dispatches an event to all listeners registered for its type.
// Listeners run on the caller's goroutine; every listener is called even
// if an earlier one fails, and the last error is returned.
func (n *Notifier) Emit(event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	n.mu.RLock()
	listeners := make([]EventListener, len(n.listeners[event.Type]))
	copy(listeners, n.listeners[event.Type])
	n.mu.RUnlock()

	var lastError error
	for _, listener := range listeners {
		if err := listener(event); err != nil {
			lastError = err
		}
	}
	return lastError
}
