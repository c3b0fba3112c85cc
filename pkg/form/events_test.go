package form

import (
	"errors"
	"testing"
)

func TestNotifierOn(t *testing.T) {
	t.Run("register listener", func(t *testing.T) {
		notifier := NewNotifier()

		notifier.On(EventHidden, func(event *Event) error {
			return nil
		})

		if count := notifier.ListenerCount(EventHidden); count != 1 {
			t.Errorf("ListenerCount = %d, want 1", count)
		}
	})

	t.Run("register listeners for both types", func(t *testing.T) {
		notifier := NewNotifier()

		notifier.OnAny(func(event *Event) error {
			return nil
		})

		if count := notifier.ListenerCount(EventHidden); count != 1 {
			t.Errorf("ListenerCount(EventHidden) = %d, want 1", count)
		}
		if count := notifier.ListenerCount(EventExpressionChanges); count != 1 {
			t.Errorf("ListenerCount(EventExpressionChanges) = %d, want 1", count)
		}
	})
}

func TestNotifierOff(t *testing.T) {
	notifier := NewNotifier()

	notifier.On(EventHidden, func(event *Event) error {
		return nil
	})
	notifier.Off(EventHidden)

	if count := notifier.ListenerCount(EventHidden); count != 0 {
		t.Errorf("ListenerCount = %d, want 0", count)
	}

	// Removing a type with no listeners should not panic.
	notifier.Off(EventExpressionChanges)
}

func TestNotifierEmit(t *testing.T) {
	t.Run("dispatch by type", func(t *testing.T) {
		notifier := NewNotifier()

		hidden := 0
		changes := 0
		notifier.On(EventHidden, func(event *Event) error {
			hidden++
			return nil
		})
		notifier.On(EventExpressionChanges, func(event *Event) error {
			changes++
			return nil
		})

		if err := notifier.Emit(&Event{Type: EventHidden, Value: true}); err != nil {
			t.Fatalf("Emit() error = %v", err)
		}

		if hidden != 1 || changes != 0 {
			t.Errorf("hidden = %d, changes = %d, want 1 and 0", hidden, changes)
		}
	})

	t.Run("nil event", func(t *testing.T) {
		notifier := NewNotifier()
		if err := notifier.Emit(nil); err == nil {
			t.Error("Emit(nil) error = nil, want error")
		}
	})

	t.Run("all listeners run despite failure", func(t *testing.T) {
		notifier := NewNotifier()

		wantErr := errors.New("listener failed")
		called := 0
		notifier.On(EventHidden, func(event *Event) error {
			called++
			return wantErr
		})
		notifier.On(EventHidden, func(event *Event) error {
			called++
			return nil
		})

		err := notifier.Emit(&Event{Type: EventHidden})
		if called != 2 {
			t.Errorf("called = %d, want 2", called)
		}
		if !errors.Is(err, wantErr) {
			t.Errorf("Emit() error = %v, want %v", err, wantErr)
		}
	})

	t.Run("synchronous in registration order", func(t *testing.T) {
		notifier := NewNotifier()

		var order []int
		notifier.On(EventExpressionChanges, func(event *Event) error {
			order = append(order, 1)
			return nil
		})
		notifier.On(EventExpressionChanges, func(event *Event) error {
			order = append(order, 2)
			return nil
		})

		notifier.Emit(&Event{Type: EventExpressionChanges, Property: "p", Value: 1})

		if len(order) != 2 || order[0] != 1 || order[1] != 2 {
			t.Errorf("order = %v, want [1 2]", order)
		}
	})
}
