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
	"fmt"

	"github.com/fieldflow/fieldflow/pkg/errors"
	"github.com/fieldflow/fieldflow/pkg/form/expression"
)

// exprKind tags the three expression source shapes.
type exprKind int

const (
	kindPath exprKind = iota
	kindFunc
	kindSource
)

// boundExpression is an expression source normalized to a uniform
// evaluator: a current value per check pass, plus a subscription hook for
// push-based sources. One boundExpression exists per (field, target
// property path).
type boundExpression struct {
	property string
	kind     exprKind

	path   string
	fn     ExprFunc
	source Source

	// latest pushed value for kindSource; check passes read this cache
	// instead of re-invoking the source.
	cached   interface{}
	received bool
}

// describe names the expression in errors and logs.
func (b *boundExpression) describe() string {
	switch b.kind {
	case kindPath:
		return b.path
	case kindFunc:
		return "func expression"
	default:
		return "async source"
	}
}

// bindExpression normalizes one of the three accepted source shapes.
func bindExpression(property string, src interface{}) (*boundExpression, error) {
	switch s := src.(type) {
	case string:
		return &boundExpression{property: property, kind: kindPath, path: s}, nil
	case ExprFunc:
		return &boundExpression{property: property, kind: kindFunc, fn: s}, nil
	case func(model interface{}, formState map[string]interface{}, field *Field) interface{}:
		return &boundExpression{property: property, kind: kindFunc, fn: s}, nil
	case Source:
		return &boundExpression{property: property, kind: kindSource, source: s}, nil
	default:
		return nil, &errors.ExpressionEvaluationError{
			Expression: fmt.Sprintf("%T", src),
			Property:   property,
			Cause:      errors.New("unsupported expression source; want a path string, an ExprFunc, or a Source"),
		}
	}
}

// value resolves the expression's current value for a check pass.
// Path strings and callables are re-evaluated; async sources read the
// cached latest push.
func (b *boundExpression) value(eval *expression.Evaluator, f *Field, model interface{}, formState map[string]interface{}) (interface{}, error) {
	switch b.kind {
	case kindPath:
		ctx := expression.BuildContext(f.fieldEnv(), model, formState)
		v, err := eval.Evaluate(b.path, ctx)
		if err != nil {
			return nil, &errors.ExpressionEvaluationError{Expression: b.path, Property: b.property, Cause: err}
		}
		return v, nil
	case kindFunc:
		return b.call(f, model, formState)
	default:
		return b.cached, nil
	}
}

// call invokes a callable expression, recovering panics into an
// ExpressionEvaluationError so one bad callable aborts the check pass
// instead of the process.
func (b *boundExpression) call(f *Field, model interface{}, formState map[string]interface{}) (v interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &errors.ExpressionEvaluationError{
				Expression: b.describe(),
				Property:   b.property,
				Cause:      fmt.Errorf("panic: %v", r),
			}
		}
	}()
	return b.fn(model, formState, f), nil
}

// deliver caches a pushed value.
func (b *boundExpression) deliver(v interface{}) {
	b.cached = v
	b.received = true
}
