// Package form implements a reactive engine for declarative field trees.
//
// A tree of Field nodes carries expressions (path strings, callables,
// or push-based sources) bound to a shared mutable model and a
// contextual form state. The Engine re-evaluates them in synchronous
// check passes, cascades hide/disabled state from ancestors to
// descendants, arbitrates which same-key sibling owns the live input
// control, and emits deduplicated change events through a Notifier.
//
// The rendering layer stays outside: it builds the tree (directly or
// from a YAML definition), calls OnInit/OnDestroy as nodes mount and
// unmount, and observes the change stream.
package form
