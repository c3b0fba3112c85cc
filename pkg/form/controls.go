package form

import (
	"sort"
	"sync"

	"github.com/fieldflow/fieldflow/pkg/form/expression"
)

// Control is the handle to an input widget bound to a field. The engine
// mirrors model values into it and asks it to revalidate when a
// validation-affecting property changes; everything else about the
// widget is the rendering layer's business.
type Control interface {
	// Value returns the control's current value.
	Value() interface{}

	// SetValue updates the control's value.
	SetValue(value interface{})

	// Revalidate recomputes the control's derived validity.
	Revalidate()
}

// ControlTree is the shared registry of live controls, keyed by the
// field key path. At most one control is attached per path.
type ControlTree interface {
	// Get returns the control attached at path, nil when absent.
	Get(path string) Control

	// Attach binds a control at path, replacing any previous one.
	Attach(path string, control Control)

	// Detach removes the control at path.
	Detach(path string)
}

// ControlFactory builds a control for a field that is becoming the
// owner of its key. The engine calls it at most once per attachment.
type ControlFactory func(field *Field) Control

// ControlRegistry is an in-memory ControlTree.
type ControlRegistry struct {
	mu       sync.RWMutex
	controls map[string]Control
}

// NewControlRegistry creates an empty control registry.
func NewControlRegistry() *ControlRegistry {
	return &ControlRegistry{controls: make(map[string]Control)}
}

// Get returns the control attached at path, nil when absent.
func (r *ControlRegistry) Get(path string) Control {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.controls[path]
}

// Attach binds a control at path.
func (r *ControlRegistry) Attach(path string, control Control) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controls[path] = control
}

// Detach removes the control at path.
func (r *ControlRegistry) Detach(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.controls, path)
}

// Paths returns the attached paths in sorted order.
func (r *ControlRegistry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, 0, len(r.controls))
	for p := range r.controls {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ValueControl is a minimal in-memory Control: a value plus a validity
// flag recomputed from its field's "templateOptions.required" property.
// It stands in for real input widgets in tests and the CLI.
type ValueControl struct {
	mu    sync.Mutex
	field *Field
	value interface{}
	valid bool
}

// NewValueControl creates a control bound to field's properties.
func NewValueControl(field *Field) *ValueControl {
	c := &ValueControl{field: field, valid: true}
	c.Revalidate()
	return c
}

// Value returns the control's current value.
func (c *ValueControl) Value() interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// SetValue updates the value and recomputes validity.
func (c *ValueControl) SetValue(value interface{}) {
	c.mu.Lock()
	c.value = value
	c.mu.Unlock()
	c.Revalidate()
}

// Valid reports the result of the last revalidation.
func (c *ValueControl) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valid
}

// Revalidate recomputes validity: a required control is invalid while
// its value is empty.
func (c *ValueControl) Revalidate() {
	required := false
	if c.field != nil {
		required = expression.Truthy(c.field.Prop("templateOptions.required"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = !required || expression.Truthy(c.value)
}
