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

import "sort"

// LifecycleState tracks where a field is in its init/destroy cycle.
type LifecycleState int

const (
	// StateUninitialized is the state of a freshly built field before OnInit.
	StateUninitialized LifecycleState = iota
	// StateActive is the state between OnInit and OnDestroy; async
	// subscriptions exist only in this state.
	StateActive
	// StateDestroyed is the state after OnDestroy. A destroyed field may
	// re-enter StateActive on a later OnInit (e.g. a re-render).
	StateDestroyed
)

// String returns the state name for logs.
func (s LifecycleState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDestroyed:
		return "destroyed"
	default:
		return "uninitialized"
	}
}

// ExprFunc is a callable expression: a pure function of the model, the
// form state, and the field it is bound to. It is re-evaluated on every
// check pass.
type ExprFunc func(model interface{}, formState map[string]interface{}, field *Field) interface{}

// Field is one node of a declarative field tree.
//
// The exported fields are configuration, set by the tree builder (or a
// YAML definition) before AttachExpressions. Everything the engine
// derives (effective hide/disabled, the attached control, dedup state)
// is unexported and read through methods.
//
// Sibling fields may share a Key; the engine arbitrates which of them
// holds the live control.
type Field struct {
	// Key identifies the field within its model scope. Optional.
	Key string

	// Hide is the declared hide flag. When set and no HideExpression is
	// supplied, it wins over expression-derived visibility.
	Hide *bool

	// HideExpression drives visibility: a path string, an ExprFunc, or a
	// Source. Truthiness of its value becomes the field's own hide state.
	HideExpression interface{}

	// Disabled is the declared disabled flag.
	Disabled *bool

	// Expressions maps target property paths (e.g. "templateOptions.label",
	// "model.name") to expression sources: path strings, ExprFuncs, or
	// Sources.
	Expressions map[string]interface{}

	// ExpressionOrder fixes the evaluation order of Expressions. When it
	// lists every Expressions key exactly once it is used as written, so
	// a later entry targeting the same path overwrites an earlier one.
	// Otherwise evaluation falls back to lexicographic key order. YAML
	// definitions fill it with declaration order.
	ExpressionOrder []string

	// TemplateOptions carries presentation properties addressed by
	// "templateOptions.*" expression targets.
	TemplateOptions map[string]interface{}

	// ClassName is an arbitrary styling hook, addressable as "className".
	ClassName string

	// Children makes this field a group. Order is significant: it breaks
	// ties between same-key siblings.
	Children []*Field

	// runtime state, engine-owned
	id           string
	parent       *Field
	state        LifecycleState
	hidden       bool // effective hide, own OR ancestors
	hideResolved bool
	disabled     bool // effective disabled, own OR ancestors
	control      Control
	props        map[string]interface{}
	last         map[string]interface{}
	exprs        []*boundExpression
	hideExpr     *boundExpression
}

// ID returns the runtime identifier assigned at AttachExpressions.
// Empty before attachment.
func (f *Field) ID() string { return f.id }

// Parent returns the owning group, nil at the root.
func (f *Field) Parent() *Field { return f.parent }

// State returns the current lifecycle state.
func (f *Field) State() LifecycleState { return f.state }

// Hidden returns the effective hide flag: the field's own resolved hide
// state OR any ancestor's.
func (f *Field) Hidden() bool { return f.hidden }

// IsDisabled returns the effective disabled flag: the field's own
// disabled state OR any ancestor's.
func (f *Field) IsDisabled() bool { return f.disabled }

// Control returns the attached control handle, nil while the field does
// not own the control for its key.
func (f *Field) Control() Control { return f.control }

// Prop reads a resolved property from the field's property graph, e.g.
// "templateOptions.label" or "className". Returns nil when unset.
func (f *Field) Prop(path string) interface{} {
	if f.props == nil {
		return nil
	}
	return ReadPath(f.props, path)
}

// LastValue returns the last emitted value for a property path, with ok
// reporting whether the property has resolved at least once.
func (f *Field) LastValue(path string) (interface{}, bool) {
	v, ok := f.last[path]
	return v, ok
}

// Group reports whether the field has a nested subtree.
func (f *Field) Group() bool { return len(f.Children) > 0 }

// Root walks up to the top of the tree.
func (f *Field) Root() *Field {
	cur := f
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// expressionProperties returns the Expressions keys in evaluation order:
// ExpressionOrder when it covers every key exactly once, lexicographic
// otherwise. Map iteration order is random, so the fallback keeps
// overlapping writes deterministic for programmatic trees.
func (f *Field) expressionProperties() []string {
	if len(f.ExpressionOrder) == len(f.Expressions) {
		seen := make(map[string]bool, len(f.ExpressionOrder))
		covered := true
		for _, property := range f.ExpressionOrder {
			if _, ok := f.Expressions[property]; !ok || seen[property] {
				covered = false
				break
			}
			seen[property] = true
		}
		if covered {
			return f.ExpressionOrder
		}
	}

	properties := make([]string, 0, len(f.Expressions))
	for property := range f.Expressions {
		properties = append(properties, property)
	}
	sort.Strings(properties)
	return properties
}

// keyPath is the control-tree path: ancestor keys joined with dots,
// empty-key groups contributing nothing. Same-key siblings share a
// keyPath, which is what makes them contend for one control.
func (f *Field) keyPath() string {
	path := ""
	for cur := f; cur != nil; cur = cur.parent {
		if cur.Key == "" {
			continue
		}
		if path == "" {
			path = cur.Key
		} else {
			path = cur.Key + "." + path
		}
	}
	return path
}

// ancestorHidden reports whether any ancestor is effectively hidden.
func (f *Field) ancestorHidden() bool {
	for cur := f.parent; cur != nil; cur = cur.parent {
		if cur.hidden {
			return true
		}
	}
	return false
}

// ancestorDisabled reports whether any ancestor is effectively disabled.
func (f *Field) ancestorDisabled() bool {
	for cur := f.parent; cur != nil; cur = cur.parent {
		if cur.disabled {
			return true
		}
	}
	return false
}

// fieldEnv builds the "field" root of the expression evaluation context:
// the property graph plus identity and resolved flags.
func (f *Field) fieldEnv() map[string]interface{} {
	env := make(map[string]interface{}, len(f.props)+3)
	for k, v := range f.props {
		env[k] = v
	}
	env["key"] = f.Key
	env["hide"] = f.hidden
	env["disabled"] = f.disabled
	return env
}
