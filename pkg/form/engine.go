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
	"log/slog"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/fieldflow/fieldflow/pkg/errors"
	"github.com/fieldflow/fieldflow/pkg/form/expression"
)

// ErrNotAttached reports a check on a node that never went through
// AttachExpressions.
var ErrNotAttached = errors.New("field is not attached")

// Engine is the recomputation orchestrator for one field tree. It
// resolves expressions, propagates hide/disabled down the tree,
// arbitrates control ownership, and emits deduplicated change events.
//
// The engine is single-threaded by contract: every check runs
// synchronously inside the call that triggered it, and a trigger that
// fires while a pass is in progress is dropped; its writes are picked
// up by the next externally-triggered pass.
type Engine struct {
	root      *Field
	modelCtx  map[string]interface{}
	formState map[string]interface{}

	controls ControlTree
	factory  ControlFactory
	events   *Notifier
	subs     *subscriptionManager
	eval     *expression.Evaluator
	logger   *slog.Logger
	metrics  *Metrics

	checking bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithModel sets the shared model graph. The model is an untyped
// document: a map[string]interface{} for keyed forms, or any value an
// indexed expression target may replace it with.
func WithModel(model interface{}) Option {
	return func(e *Engine) { e.modelCtx["model"] = model }
}

// WithFormState sets the contextual state expressions see as formState.
func WithFormState(formState map[string]interface{}) Option {
	return func(e *Engine) { e.formState = formState }
}

// WithControls sets the shared control tree. Defaults to an in-memory
// registry.
func WithControls(controls ControlTree) Option {
	return func(e *Engine) { e.controls = controls }
}

// WithControlFactory sets the factory used when a field acquires control
// ownership and has no stored control to re-attach. Defaults to
// NewValueControl.
func WithControlFactory(factory ControlFactory) Option {
	return func(e *Engine) { e.factory = factory }
}

// WithLogger sets the structured logger. Defaults to slog's discard
// handler.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics attaches prometheus instrumentation.
func WithMetrics(metrics *Metrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// New creates an engine for the tree rooted at root.
func New(root *Field, opts ...Option) *Engine {
	e := &Engine{
		root:     root,
		modelCtx: map[string]interface{}{"model": map[string]interface{}{}},
		events:   NewNotifier(),
		subs:     newSubscriptionManager(),
		eval:     expression.New(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.controls == nil {
		e.controls = NewControlRegistry()
	}
	if e.factory == nil {
		e.factory = func(f *Field) Control { return NewValueControl(f) }
	}
	if e.formState == nil {
		e.formState = map[string]interface{}{}
	}
	return e
}

// Events returns the engine's change notifier.
func (e *Engine) Events() *Notifier { return e.events }

// Model returns the shared model graph.
func (e *Engine) Model() interface{} { return e.modelCtx["model"] }

// Controls returns the shared control tree.
func (e *Engine) Controls() ControlTree { return e.controls }

// AttachExpressions installs expression bindings on node and its subtree
// and runs the initial hide/disabled resolution. It must be called once
// per subtree before OnInit; calling it again after adding children is
// allowed and only binds the new nodes.
func (e *Engine) AttachExpressions(node *Field) error {
	if node == nil {
		node = e.root
	}
	if err := e.attach(node); err != nil {
		return err
	}
	return e.CheckField(node)
}

func (e *Engine) attach(f *Field) error {
	if f.id == "" {
		f.id = uuid.NewString()
	}
	if f.props == nil {
		if f.TemplateOptions == nil {
			f.TemplateOptions = map[string]interface{}{}
		}
		f.props = map[string]interface{}{
			"templateOptions": f.TemplateOptions,
			"className":       f.ClassName,
		}
	}
	if f.last == nil {
		f.last = map[string]interface{}{}
	}

	if f.hideExpr == nil && f.HideExpression != nil {
		b, err := bindExpression("hide", f.HideExpression)
		if err != nil {
			return err
		}
		f.hideExpr = b
	}

	if f.exprs == nil && len(f.Expressions) > 0 {
		for _, property := range f.expressionProperties() {
			b, err := bindExpression(property, f.Expressions[property])
			if err != nil {
				return err
			}
			f.exprs = append(f.exprs, b)
		}
	}

	for _, child := range f.Children {
		child.parent = f
		if err := e.attach(child); err != nil {
			return err
		}
	}
	return nil
}

// OnInit marks node and its subtree Active and subscribes their async
// expression sources. Values pushed before this call were dropped, not
// queued.
func (e *Engine) OnInit(node *Field) {
	if node == nil {
		node = e.root
	}
	e.initField(node)
	e.metrics.subscriptions(e.subs.activeCount())
}

func (e *Engine) initField(f *Field) {
	if f.state != StateActive {
		f.state = StateActive
		e.subs.activate(f, e.onSourceValue)
		e.logger.Debug("field activated",
			slog.String("field_id", f.id), slog.String("field_key", f.Key))
	}
	for _, child := range f.Children {
		e.initField(child)
	}
}

// OnDestroy marks node and its subtree Destroyed and cancels their
// subscriptions. lastExpressionValues survive, so a re-init can tell a
// no-op push from a real change.
func (e *Engine) OnDestroy(node *Field) {
	if node == nil {
		node = e.root
	}
	e.destroyField(node)
	e.metrics.subscriptions(e.subs.activeCount())
}

func (e *Engine) destroyField(f *Field) {
	for _, child := range f.Children {
		e.destroyField(child)
	}
	if f.state == StateActive {
		e.subs.deactivate(f)
	}
	f.state = StateDestroyed
	e.logger.Debug("field destroyed",
		slog.String("field_id", f.id), slog.String("field_key", f.Key))
}

// onSourceValue handles one async delivery: cache the value, then
// re-enter the engine at the nearest scope whose pass re-resolves the
// field together with its same-key siblings and the disabled cascade:
// the field's parent, or the field itself at the root.
func (e *Engine) onSourceValue(f *Field, b *boundExpression, v interface{}) {
	if f.state != StateActive {
		return
	}
	b.deliver(v)

	scope := f.parent
	if scope == nil {
		scope = f
	}
	if err := e.CheckField(scope); err != nil {
		e.logger.Error("check triggered by async source failed",
			slog.String("field_id", f.id),
			slog.String("property", b.property),
			slog.Any("error", err))
	}
}

// CheckField runs one synchronous recomputation pass rooted at node
// (nil means the tree root). Returns the error that aborted the pass,
// if any; state updated before the error sticks. Checking a node that
// was never attached fails with ErrNotAttached.
func (e *Engine) CheckField(node *Field) error {
	if node == nil {
		node = e.root
	}
	if node.last == nil {
		return errors.Wrapf(ErrNotAttached, "checking field %q", node.Key)
	}
	if e.checking {
		// A pass is in progress; its traversal will observe any writes
		// that triggered us, and the rest waits for the next pass.
		return nil
	}
	e.checking = true
	defer func() { e.checking = false }()

	err := e.checkField(node)
	if err != nil {
		e.metrics.passAborted()
		return err
	}
	e.metrics.passDone()
	return nil
}

// checkField applies the pass to one node, then to its subtree.
func (e *Engine) checkField(f *Field) error {
	ownHide, err := e.resolveOwnHide(f)
	if err != nil {
		return err
	}
	if err := e.applyNode(f, ownHide); err != nil {
		return err
	}
	return e.checkChildren(f)
}

// checkChildren re-evaluates the direct children hidden-first: children
// whose own hide resolves true (or whose ancestry is hidden) are
// processed and detached before any newly-visible sibling attaches, so a
// control key is never double-bound during a reshuffle.
func (e *Engine) checkChildren(f *Field) error {
	if len(f.Children) == 0 {
		return nil
	}

	ownHide := make(map[*Field]bool, len(f.Children))
	var hidden, visible []*Field
	for _, child := range f.Children {
		oh, err := e.resolveOwnHide(child)
		if err != nil {
			return err
		}
		ownHide[child] = oh
		if oh || child.ancestorHidden() {
			hidden = append(hidden, child)
		} else {
			visible = append(visible, child)
		}
	}

	for _, child := range hidden {
		if err := e.applyChild(child, ownHide[child]); err != nil {
			return err
		}
	}
	for _, child := range visible {
		if err := e.applyChild(child, ownHide[child]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) applyChild(child *Field, ownHide bool) error {
	if err := e.applyNode(child, ownHide); err != nil {
		return err
	}
	if child.Group() {
		return e.checkChildren(child)
	}
	return nil
}

// resolveOwnHide computes a field's own hide state: the declared flag
// when set and no hide expression is supplied, otherwise the hide
// expression's truthiness. A group's own declared state is authoritative
// for it; an ancestor's expression result never overwrites it.
func (e *Engine) resolveOwnHide(f *Field) (bool, error) {
	if f.hideExpr == nil {
		return f.Hide != nil && *f.Hide, nil
	}
	v, err := f.hideExpr.value(e.eval, f, e.Model(), e.formState)
	if err != nil {
		return false, err
	}
	return expression.Truthy(v), nil
}

// applyNode runs steps 2-6 of the pass for a single node: effective
// hide, control transitions, expression properties, disabled cascade,
// and deduplicated change emission.
func (e *Engine) applyNode(f *Field, ownHide bool) error {
	if f.last == nil {
		return errors.Wrapf(ErrNotAttached, "checking field %q", f.Key)
	}
	wasHidden := f.hidden
	f.hidden = ownHide || f.ancestorHidden()

	// Detach before attach, hidden nodes having been ordered first.
	if f.hidden {
		e.releaseControl(f)
	} else {
		e.acquireControl(f)
	}

	if !f.hideResolved || f.hidden != wasHidden {
		f.hideResolved = true
		f.last["hide"] = f.hidden
		e.emit(&Event{Type: EventHidden, Field: f, Value: f.hidden})
		e.logger.Debug("hide flag resolved",
			slog.String("field_id", f.id),
			slog.String("field_key", f.Key),
			slog.Bool("hidden", f.hidden))
	}

	if err := e.applyExpressions(f); err != nil {
		return err
	}

	e.applyDisabled(f)
	return nil
}

// applyExpressions resolves every bound expression property in order and
// writes the result to its target: model paths through the path accessor
// (mirrored into the bound control), everything else into the field's
// property graph.
func (e *Engine) applyExpressions(f *Field) error {
	for _, b := range f.exprs {
		v, err := b.value(e.eval, f, e.Model(), e.formState)
		if err != nil {
			return err
		}

		if isModelPath(b.property) {
			if err := WritePath(e.modelCtx, b.property, v); err != nil {
				return err
			}
			e.mirrorToControl(b.property, v)
		} else {
			if err := WritePath(f.props, b.property, v); err != nil {
				return err
			}
		}

		if b.property == "disabled" {
			// Feeds the cascade in applyDisabled; the change event there
			// carries the effective value, not the raw one.
			continue
		}

		if e.changed(f, b.property, v) {
			f.last[b.property] = v
			e.emit(&Event{Type: EventExpressionChanges, Field: f, Property: b.property, Value: v})
			if b.property == "templateOptions.required" && f.control != nil {
				f.control.Revalidate()
			}
		}
	}
	return nil
}

// applyDisabled resolves the disabled cascade. It runs for hidden fields
// too: a field may become visible later without its own expressions
// re-evaluating in between.
func (e *Engine) applyDisabled(f *Field) {
	own := f.Disabled != nil && *f.Disabled
	if !own {
		own = expression.Truthy(f.props["disabled"])
	}
	f.disabled = own || f.ancestorDisabled()

	if e.changed(f, "disabled", f.disabled) {
		f.last["disabled"] = f.disabled
		e.emit(&Event{Type: EventExpressionChanges, Field: f, Property: "disabled", Value: f.disabled})
	}
}

// releaseControl detaches and releases f's control handle if f currently
// owns the live control for its key.
func (e *Engine) releaseControl(f *Field) {
	if f.control == nil {
		return
	}
	path := f.keyPath()
	if path != "" && e.controls.Get(path) == f.control {
		e.controls.Detach(path)
		e.logger.Debug("control detached",
			slog.String("field_key", f.Key), slog.String("path", path))
	}
	f.control = nil
}

// acquireControl attaches a control for f unless another visible sibling
// with the same key already owns it. A fresh control starts from the
// model value at its path, so the widget keeps its value across
// visibility flips.
func (e *Engine) acquireControl(f *Field) {
	if f.Key == "" || f.control != nil {
		return
	}
	path := f.keyPath()
	if e.controls.Get(path) != nil {
		return
	}

	control := e.factory(f)
	if v := ReadPath(e.modelCtx, "model."+path); v != nil {
		control.SetValue(v)
	}
	f.control = control
	e.controls.Attach(path, control)
	e.logger.Debug("control attached",
		slog.String("field_key", f.Key), slog.String("path", path))
}

// mirrorToControl forwards a model write to the control bound at the
// corresponding key path, if any.
func (e *Engine) mirrorToControl(property string, v interface{}) {
	if !strings.HasPrefix(property, "model.") {
		return
	}
	if control := e.controls.Get(strings.TrimPrefix(property, "model.")); control != nil {
		control.SetValue(v)
	}
}

// changed reports whether a property's resolved value materially differs
// from the last emitted one. Deep equality, not reference equality.
func (e *Engine) changed(f *Field, property string, v interface{}) bool {
	last, ok := f.last[property]
	if !ok {
		return true
	}
	return !reflect.DeepEqual(last, v)
}

func (e *Engine) emit(event *Event) {
	e.metrics.eventEmitted(event.Type)
	if err := e.events.Emit(event); err != nil {
		e.logger.Warn("change listener failed",
			slog.String("event", string(event.Type)),
			slog.String("property", event.Property),
			slog.Any("error", err))
	}
}

// isModelPath reports whether a target property path roots in the shared
// model rather than the field's own property graph.
func isModelPath(property string) bool {
	return property == "model" ||
		strings.HasPrefix(property, "model.") ||
		strings.HasPrefix(property, "model[")
}
