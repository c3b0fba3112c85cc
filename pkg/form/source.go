package form

import "sync"

// Source is a push-based expression value source. Subscribe registers a
// handler for future values and returns a cancel function; values pushed
// before subscription or after cancellation are not delivered.
//
// Any reactive-streams or channel bridge satisfying this contract can
// drive an async expression.
type Source interface {
	Subscribe(onValue func(interface{})) (cancel func())
}

// Subject is an in-memory Source that fan-outs published values to its
// current subscribers, synchronously and in subscription order. It does
// not replay: a new subscriber only sees values published after it
// subscribed.
type Subject struct {
	mu     sync.Mutex
	subs   map[int]func(interface{})
	order  []int
	nextID int
}

// NewSubject creates an empty Subject.
func NewSubject() *Subject {
	return &Subject{subs: make(map[int]func(interface{}))}
}

// Subscribe registers a handler for future values.
func (s *Subject) Subscribe(onValue func(interface{})) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = onValue
	s.order = append(s.order, id)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
		for i, oid := range s.order {
			if oid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers a value to every current subscriber. Delivery happens
// on the caller's goroutine; handlers run without the Subject lock held,
// so a handler may subscribe or cancel.
func (s *Subject) Publish(value interface{}) {
	s.mu.Lock()
	handlers := make([]func(interface{}), 0, len(s.order))
	for _, id := range s.order {
		if fn, ok := s.subs[id]; ok {
			handlers = append(handlers, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(value)
	}
}

// SubscriberCount returns the number of active subscriptions.
func (s *Subject) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
