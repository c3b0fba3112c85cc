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

package errors

import (
	"fmt"
)

// PropertyAssignmentError represents a failed write of an expression result.
// It is raised when a property path cannot be assigned because the container
// that should hold the leaf value is absent or not writable.
type PropertyAssignmentError struct {
	// Path is the full property path that was being written (e.g. "model.a.b[0].c")
	Path string

	// Segment is the path segment at which the assignment failed
	Segment string

	// Reason explains why the segment could not be assigned
	Reason string
}

// Error implements the error interface.
func (e *PropertyAssignmentError) Error() string {
	if e.Segment != "" {
		return fmt.Sprintf("cannot assign %q: segment %q %s", e.Path, e.Segment, e.Reason)
	}
	return fmt.Sprintf("cannot assign %q: %s", e.Path, e.Reason)
}

// ExpressionEvaluationError represents a failure while compiling or
// evaluating an expression bound to a field.
type ExpressionEvaluationError struct {
	// Expression is the source text of the expression, or a description
	// for non-string sources (e.g. "func expression")
	Expression string

	// Property is the target property path the expression is bound to
	Property string

	// Cause is the underlying compile or runtime error
	Cause error
}

// Error implements the error interface.
func (e *ExpressionEvaluationError) Error() string {
	msg := fmt.Sprintf("evaluating expression %q", e.Expression)
	if e.Property != "" {
		msg = fmt.Sprintf("%s for %q", msg, e.Property)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Cause.Error())
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ExpressionEvaluationError) Unwrap() error {
	return e.Cause
}

// DefinitionError represents an invalid field-tree definition.
// Use this for malformed YAML, unknown keys, or constraint violations
// detected while loading a definition.
type DefinitionError struct {
	// Field identifies the offending field by key or position (e.g. "fields[2].name")
	Field string

	// Message is the human-readable error description
	Message string

	// Cause is the underlying error (e.g. a YAML decode error)
	Cause error
}

// Error implements the error interface.
func (e *DefinitionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid definition at %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid definition: %s", e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *DefinitionError) Unwrap() error {
	return e.Cause
}
