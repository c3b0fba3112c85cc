// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package form

import "sync"

// subscriptionManager owns the async-source subscriptions of active
// fields: one slot per (field id, target property path). Slots exist
// only between activate and deactivate, so values pushed while a field
// is destroyed are dropped rather than queued.
type subscriptionManager struct {
	mu    sync.Mutex
	slots map[string]map[string]func()
}

func newSubscriptionManager() *subscriptionManager {
	return &subscriptionManager{slots: make(map[string]map[string]func())}
}

// activate subscribes every async-source expression on f, delivering
// values to onValue. A slot that is already live is left alone, which
// keeps the at-most-one-subscription guarantee across repeated OnInit
// calls.
func (m *subscriptionManager) activate(f *Field, onValue func(f *Field, b *boundExpression, v interface{})) {
	for _, b := range f.sourceExpressions() {
		m.mu.Lock()
		slots := m.slots[f.id]
		if slots == nil {
			slots = make(map[string]func())
			m.slots[f.id] = slots
		}
		if _, live := slots[b.property]; live {
			m.mu.Unlock()
			continue
		}
		m.mu.Unlock()

		// Subscribe without the lock: a source may deliver synchronously.
		b := b
		cancel := b.source.Subscribe(func(v interface{}) {
			onValue(f, b, v)
		})

		// A synchronous delivery may have destroyed the field, or
		// destroyed and re-activated it. Store into the current slot map
		// only while it is still registered and the slot is still free;
		// otherwise this subscription is an orphan and is cancelled here.
		m.mu.Lock()
		cur, registered := m.slots[f.id]
		if !registered || f.state != StateActive {
			m.mu.Unlock()
			cancel()
			continue
		}
		if _, live := cur[b.property]; live {
			m.mu.Unlock()
			cancel()
			continue
		}
		cur[b.property] = cancel
		m.mu.Unlock()
	}
}

// deactivate cancels and discards every slot for f. The field's
// lastExpressionValues survive, so a later activation can tell a no-op
// push from a real change.
func (m *subscriptionManager) deactivate(f *Field) {
	m.mu.Lock()
	slots := m.slots[f.id]
	delete(m.slots, f.id)
	m.mu.Unlock()

	for _, cancel := range slots {
		cancel()
	}
}

// activeCount returns the number of live slots, for instrumentation.
func (m *subscriptionManager) activeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, slots := range m.slots {
		count += len(slots)
	}
	return count
}

// sourceExpressions lists the field's async-source bindings, the hide
// expression included.
func (f *Field) sourceExpressions() []*boundExpression {
	var sources []*boundExpression
	if f.hideExpr != nil && f.hideExpr.kind == kindSource {
		sources = append(sources, f.hideExpr)
	}
	for _, b := range f.exprs {
		if b.kind == kindSource {
			sources = append(sources, b)
		}
	}
	return sources
}
