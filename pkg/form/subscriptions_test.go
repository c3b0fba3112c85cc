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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncSourceDrivesProperty(t *testing.T) {
	src := NewSubject()
	leaf := &Field{
		Key: "status",
		Expressions: map[string]interface{}{
			"templateOptions.label": src,
		},
	}
	root := &Field{Children: []*Field{leaf}}

	e := New(root)
	require.NoError(t, e.AttachExpressions(nil))
	e.OnInit(nil)

	assert.Equal(t, 1, src.SubscriberCount())

	src.Publish("syncing")
	assert.Equal(t, "syncing", leaf.Prop("templateOptions.label"))

	src.Publish("done")
	assert.Equal(t, "done", leaf.Prop("templateOptions.label"))
}

func TestDestroyedFieldDropsPushedValues(t *testing.T) {
	src := NewSubject()
	leaf := &Field{
		Key: "status",
		Expressions: map[string]interface{}{
			"templateOptions.label": src,
		},
	}
	root := &Field{Children: []*Field{leaf}}

	e := New(root)
	require.NoError(t, e.AttachExpressions(nil))
	e.OnInit(nil)

	src.Publish("before")
	require.Equal(t, "before", leaf.Prop("templateOptions.label"))

	e.OnDestroy(nil)
	assert.Equal(t, StateDestroyed, leaf.State())
	assert.Equal(t, 0, src.SubscriberCount())

	// Pushed while destroyed: dropped, not queued.
	src.Publish("lost")
	assert.Equal(t, "before", leaf.Prop("templateOptions.label"))

	// Re-activation resumes with values pushed after it.
	e.OnInit(nil)
	assert.Equal(t, StateActive, leaf.State())
	assert.Equal(t, "before", leaf.Prop("templateOptions.label"))

	src.Publish("after")
	assert.Equal(t, "after", leaf.Prop("templateOptions.label"))
}

func TestAtMostOneSubscriptionPerExpression(t *testing.T) {
	src := NewSubject()
	leaf := &Field{
		Key: "s",
		Expressions: map[string]interface{}{
			"templateOptions.label": src,
		},
	}
	root := &Field{Children: []*Field{leaf}}

	e := New(root)
	require.NoError(t, e.AttachExpressions(nil))

	e.OnInit(nil)
	e.OnInit(nil)
	e.OnInit(nil)

	assert.Equal(t, 1, src.SubscriberCount())
	assert.Equal(t, 1, e.subs.activeCount())
}

func TestAsyncHideExpression(t *testing.T) {
	src := NewSubject()
	leaf := &Field{Key: "x", HideExpression: src}
	root := &Field{Children: []*Field{leaf}}

	e := New(root)
	require.NoError(t, e.AttachExpressions(nil))
	e.OnInit(nil)

	// No push yet: the cached value is nil, so the field is visible.
	assert.False(t, leaf.Hidden())

	src.Publish(true)
	assert.True(t, leaf.Hidden())
	assert.Nil(t, leaf.Control())

	src.Publish(false)
	assert.False(t, leaf.Hidden())
	assert.NotNil(t, leaf.Control())
}

// replaySource delivers its value synchronously inside Subscribe and
// counts cancellations.
type replaySource struct {
	value     interface{}
	cancelled int
}

func (s *replaySource) Subscribe(onValue func(interface{})) func() {
	onValue(s.value)
	return func() { s.cancelled++ }
}

func TestDestroyDuringSynchronousDeliveryLeavesNoOrphan(t *testing.T) {
	// The hide flip emitted by the synchronous delivery destroys the
	// tree before Subscribe returns. The subscription taken during that
	// delivery must not outlive the field.
	src := &replaySource{value: true}
	leaf := &Field{Key: "x", HideExpression: src}
	root := &Field{Children: []*Field{leaf}}

	e := New(root)
	require.NoError(t, e.AttachExpressions(nil))
	e.Events().OnAny(func(ev *Event) error {
		e.OnDestroy(nil)
		return nil
	})

	e.OnInit(nil)

	assert.Equal(t, StateDestroyed, leaf.State())
	assert.Equal(t, 0, e.subs.activeCount())
	assert.Equal(t, 1, src.cancelled, "the orphaned subscription is cancelled")
}

func TestDestroyReleasesAllSlots(t *testing.T) {
	srcA, srcB := NewSubject(), NewSubject()
	leaf := &Field{
		Key: "multi",
		Expressions: map[string]interface{}{
			"templateOptions.label":       srcA,
			"templateOptions.description": srcB,
		},
	}
	root := &Field{Children: []*Field{leaf}}

	e := New(root)
	require.NoError(t, e.AttachExpressions(nil))
	e.OnInit(nil)
	require.Equal(t, 2, e.subs.activeCount())

	e.OnDestroy(nil)
	assert.Equal(t, 0, e.subs.activeCount())
	assert.Equal(t, 0, srcA.SubscriberCount())
	assert.Equal(t, 0, srcB.SubscriberCount())
}
