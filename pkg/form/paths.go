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
	"reflect"
	"strconv"
	"strings"

	"github.com/fieldflow/fieldflow/pkg/errors"
)

// pathSegment is one step of a dotted/bracketed property path.
type pathSegment struct {
	name    string
	index   int
	isIndex bool
}

func (s pathSegment) String() string {
	if s.isIndex {
		return fmt.Sprintf("[%d]", s.index)
	}
	return s.name
}

// splitPath parses a property path such as "a.b[0].c" into segments.
// Bracketed segments must contain a non-negative integer index.
func splitPath(path string) ([]pathSegment, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}

	var segs []pathSegment
	rest := path
	for rest != "" {
		switch {
		case rest[0] == '.':
			if len(segs) == 0 {
				return nil, fmt.Errorf("path %q starts with a separator", path)
			}
			rest = rest[1:]
			if rest == "" || rest[0] == '.' {
				return nil, fmt.Errorf("path %q has an empty segment", path)
			}
		case rest[0] == '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, fmt.Errorf("path %q has an unterminated index", path)
			}
			index, err := strconv.Atoi(rest[1:end])
			if err != nil || index < 0 {
				return nil, fmt.Errorf("path %q has an invalid index %q", path, rest[1:end])
			}
			segs = append(segs, pathSegment{index: index, isIndex: true})
			rest = rest[end+1:]
		default:
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			if end == 0 {
				return nil, fmt.Errorf("path %q has an empty segment", path)
			}
			segs = append(segs, pathSegment{name: rest[:end]})
			rest = rest[end:]
		}
	}
	return segs, nil
}

// ReadPath reads the value at a property path within target.
// Missing intermediate segments resolve to nil rather than erroring,
// as do malformed paths.
func ReadPath(target interface{}, path string) interface{} {
	segs, err := splitPath(path)
	if err != nil {
		return nil
	}
	cur := target
	for _, seg := range segs {
		cur = fetchSegment(cur, seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// WritePath writes value at a property path within target, creating
// missing intermediate containers along the way: a map for a named
// segment, a slice for a bracketed one. An empty intermediate map in
// front of an index segment is replaced by a slice, so an index write
// into an untouched model initializes it as a sequence. Writing index i
// into a short slice grows it with nils up to i.
//
// WritePath fails with *errors.PropertyAssignmentError when target is
// nil, when an existing intermediate value is present but not a
// container, or when a segment kind does not match its container
// (a named segment against a slice, an index against a map).
func WritePath(target interface{}, path string, value interface{}) error {
	segs, err := splitPath(path)
	if err != nil {
		return &errors.PropertyAssignmentError{Path: path, Reason: err.Error()}
	}
	if target == nil {
		return &errors.PropertyAssignmentError{Path: path, Segment: segs[0].String(), Reason: "target is nil"}
	}
	root, err := setSegments(target, segs, value, path)
	if err != nil {
		return err
	}
	if !sameContainer(root, target) {
		// A root slice would have to grow, which cannot be reflected back
		// to the caller. Callers wrap slices in a map root instead.
		return &errors.PropertyAssignmentError{Path: path, Segment: segs[0].String(), Reason: "cannot grow root sequence"}
	}
	return nil
}

// setSegments writes value at segs within cur, returning cur, which may
// be a grown slice the caller must store back in cur's parent slot.
func setSegments(cur interface{}, segs []pathSegment, value interface{}, path string) (interface{}, error) {
	seg := segs[0]
	if cur == nil {
		cur = newContainer(seg)
	}
	if len(segs) == 1 {
		return storeSegment(cur, seg, value, path)
	}

	child := fetchSegment(cur, seg)
	if child != nil && !isContainer(child) {
		return nil, &errors.PropertyAssignmentError{Path: path, Segment: seg.String(), Reason: "is not a container"}
	}
	if segs[1].isIndex && isEmptyMap(child) {
		// An empty mapping carries no keys to lose; an index write
		// turns it into a sequence.
		child = nil
	}
	newChild, err := setSegments(child, segs[1:], value, path)
	if err != nil {
		return nil, err
	}
	return storeSegment(cur, seg, newChild, path)
}

// newContainer builds the container a segment expects to be stored in.
func newContainer(seg pathSegment) interface{} {
	if seg.isIndex {
		return []interface{}{}
	}
	return map[string]interface{}{}
}

// fetchSegment resolves one segment against a container, nil when absent.
func fetchSegment(cur interface{}, seg pathSegment) interface{} {
	switch c := cur.(type) {
	case map[string]interface{}:
		if seg.isIndex {
			return nil
		}
		return c[seg.name]
	case []interface{}:
		if !seg.isIndex || seg.index >= len(c) {
			return nil
		}
		return c[seg.index]
	}

	rv := reflect.ValueOf(cur)
	switch rv.Kind() {
	case reflect.Map:
		if seg.isIndex || rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		v := rv.MapIndex(reflect.ValueOf(seg.name))
		if !v.IsValid() {
			return nil
		}
		return v.Interface()
	case reflect.Slice, reflect.Array:
		if !seg.isIndex || seg.index >= rv.Len() {
			return nil
		}
		return rv.Index(seg.index).Interface()
	}
	return nil
}

// storeSegment assigns value into cur at seg, returning cur (a grown slice
// when an index write extended it).
func storeSegment(cur interface{}, seg pathSegment, value interface{}, path string) (interface{}, error) {
	switch c := cur.(type) {
	case map[string]interface{}:
		if seg.isIndex {
			return nil, &errors.PropertyAssignmentError{Path: path, Segment: seg.String(), Reason: "indexes a mapping"}
		}
		c[seg.name] = value
		return c, nil
	case []interface{}:
		if !seg.isIndex {
			return nil, &errors.PropertyAssignmentError{Path: path, Segment: seg.String(), Reason: "names a sequence element"}
		}
		for len(c) <= seg.index {
			c = append(c, nil)
		}
		c[seg.index] = value
		return c, nil
	}

	rv := reflect.ValueOf(cur)
	if rv.Kind() == reflect.Map && !seg.isIndex && rv.Type().Key().Kind() == reflect.String {
		ev := reflect.ValueOf(value)
		if value == nil {
			ev = reflect.Zero(rv.Type().Elem())
		}
		if !ev.Type().AssignableTo(rv.Type().Elem()) {
			return nil, &errors.PropertyAssignmentError{Path: path, Segment: seg.String(), Reason: "value type does not fit the mapping"}
		}
		rv.SetMapIndex(reflect.ValueOf(seg.name), ev)
		return cur, nil
	}
	return nil, &errors.PropertyAssignmentError{Path: path, Segment: seg.String(), Reason: "is not a container"}
}

// isEmptyMap reports whether v is a mapping with no entries.
func isEmptyMap(v interface{}) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Map && rv.Len() == 0
}

// isContainer reports whether v can hold child segments.
func isContainer(v interface{}) bool {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return true
	}
	return false
}

// sameContainer reports whether two container values share identity.
// Maps always mutate in place; slices compare by header.
func sameContainer(a, b interface{}) bool {
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.Kind() != bv.Kind() {
		return false
	}
	switch av.Kind() {
	case reflect.Map:
		return av.UnsafePointer() == bv.UnsafePointer()
	case reflect.Slice:
		return av.Len() == bv.Len() && (av.Len() == 0 || av.UnsafePointer() == bv.UnsafePointer())
	}
	return true
}
