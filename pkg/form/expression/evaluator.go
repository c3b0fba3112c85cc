package expression

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// propertyPath matches plain property-path expressions such as
// "model.a.b[0].c". Dotted segments of these are rewritten to expr's
// nil-safe "?." accessor so a missing branch resolves to nil, matching
// the read semantics of the path accessor.
var propertyPath = regexp.MustCompile(`^[A-Za-z_]\w*(?:\.[A-Za-z_]\w*|\[\d+\])*$`)

// Evaluator evaluates path-string expressions against an evaluation context.
// It caches compiled programs for improved performance on repeated checks.
//
// The expression language is deliberately small: property access with dots
// and bracketed indices, plus boolean negation with a leading "!". The
// negation applies truthiness semantics, so "!model.toggle" is true when
// model.toggle is absent, nil, false, zero, or empty.
type Evaluator struct {
	cache map[string]*vm.Program
	mu    sync.RWMutex
}

// New creates a new expression evaluator.
func New() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*vm.Program),
	}
}

// Evaluate evaluates an expression against the given context and returns
// its current value.
//
// The context should contain:
//   - field: the field node's property view
//   - model: the shared model graph
//   - formState: contextual state supplied by the outer application
//
// Example:
//
//	ctx := map[string]interface{}{
//	    "model":     map[string]interface{}{"active": true},
//	    "formState": map[string]interface{}{},
//	}
//	value, err := eval.Evaluate("!model.active", ctx)
func (e *Evaluator) Evaluate(expression string, ctx map[string]interface{}) (interface{}, error) {
	// Leading "!" is handled outside expr: the negation must treat a missing
	// value as false, while expr's "!" requires a boolean operand.
	negations := 0
	src := strings.TrimSpace(expression)
	for strings.HasPrefix(src, "!") {
		negations++
		src = strings.TrimSpace(src[1:])
	}

	result, err := e.run(src, ctx)
	if err != nil {
		return nil, err
	}

	if negations == 0 {
		return result, nil
	}
	truth := Truthy(result)
	if negations%2 == 1 {
		truth = !truth
	}
	return truth, nil
}

func (e *Evaluator) run(src string, ctx map[string]interface{}) (interface{}, error) {
	if propertyPath.MatchString(src) {
		src = strings.ReplaceAll(src, ".", "?.")
	}
	program, err := e.compile(src)
	if err != nil {
		return nil, err
	}
	return expr.Run(program, ctx)
}

// compile compiles an expression and caches the result.
func (e *Evaluator) compile(src string) (*vm.Program, error) {
	// Check cache first (read lock)
	e.mu.RLock()
	if prog, ok := e.cache[src]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	// Allow any environment: the context is supplied at runtime and paths
	// into absent model branches must resolve to nil, not fail to compile.
	prog, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}

	// Cache the compiled program (write lock)
	e.mu.Lock()
	e.cache[src] = prog
	e.mu.Unlock()

	return prog, nil
}

// ClearCache clears the expression cache.
// This is mainly useful for testing.
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	e.cache = make(map[string]*vm.Program)
	e.mu.Unlock()
}

// CacheSize returns the number of cached expressions.
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

// Truthy reports whether a value counts as true for visibility and disabled
// resolution. nil, false, zero numbers, and empty strings are false;
// everything else, including empty maps and slices, is true.
func Truthy(v interface{}) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String() != ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return !rv.IsNil()
	default:
		return true
	}
}
