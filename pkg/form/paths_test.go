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

	"github.com/fieldflow/fieldflow/pkg/errors"
)

func TestReadPath(t *testing.T) {
	target := map[string]interface{}{
		"a": map[string]interface{}{
			"b": []interface{}{
				map[string]interface{}{"c": 42},
			},
		},
		"s": "scalar",
	}

	tests := []struct {
		name string
		path string
		want interface{}
	}{
		{"nested", "a.b[0].c", 42},
		{"map", "a", target["a"]},
		{"missing leaf", "a.x", nil},
		{"missing branch", "x.y.z", nil},
		{"index out of range", "a.b[3]", nil},
		{"index into map", "a[0]", nil},
		{"name into scalar", "s.x", nil},
		{"malformed", "a..b", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReadPath(target, tt.path))
		})
	}
}

func TestWritePathAutoCreate(t *testing.T) {
	target := map[string]interface{}{}

	require.NoError(t, WritePath(target, "a.b[1].c", "v"))

	a, ok := target["a"].(map[string]interface{})
	require.True(t, ok, "a should be a map")
	b, ok := a["b"].([]interface{})
	require.True(t, ok, "a.b should be a slice")
	require.Len(t, b, 2)
	assert.Nil(t, b[0])
	assert.Equal(t, "v", ReadPath(target, "a.b[1].c"))
}

func TestWritePathInitializesSequenceModel(t *testing.T) {
	// Writing model[0] against an empty model materializes the model
	// as an ordered sequence rooted in the surrounding context.
	ctx := map[string]interface{}{}

	require.NoError(t, WritePath(ctx, "model[0]", "first"))

	model, ok := ctx["model"].([]interface{})
	require.True(t, ok, "model should be a slice")
	require.Len(t, model, 1)
	assert.Equal(t, "first", model[0])
}

func TestWritePathReplacesEmptyMapWithSequence(t *testing.T) {
	// An empty map in front of an index segment holds no data, so the
	// index write converts it to a sequence in place.
	ctx := map[string]interface{}{"model": map[string]interface{}{}}

	require.NoError(t, WritePath(ctx, "model[0]", "first"))

	model, ok := ctx["model"].([]interface{})
	require.True(t, ok, "model should be a slice")
	require.Len(t, model, 1)
	assert.Equal(t, "first", model[0])
}

func TestWritePathKeepsPopulatedMapOnIndexWrite(t *testing.T) {
	ctx := map[string]interface{}{
		"model": map[string]interface{}{"name": "kept"},
	}

	err := WritePath(ctx, "model[0]", "first")
	var assignErr *errors.PropertyAssignmentError
	require.ErrorAs(t, err, &assignErr)
	assert.Equal(t, "[0]", assignErr.Segment)
	assert.Equal(t, "kept", ReadPath(ctx, "model.name"))
}

func TestWritePathOverwrite(t *testing.T) {
	target := map[string]interface{}{
		"a": map[string]interface{}{"b": 1},
	}

	require.NoError(t, WritePath(target, "a.b", 2))
	assert.Equal(t, 2, ReadPath(target, "a.b"))
}

func TestWritePathTypedMap(t *testing.T) {
	target := map[string]interface{}{
		"opts": map[string]string{"label": "old"},
	}

	require.NoError(t, WritePath(target, "opts.label", "new"))
	assert.Equal(t, "new", ReadPath(target, "opts.label"))

	err := WritePath(target, "opts.count", 3)
	var assignErr *errors.PropertyAssignmentError
	require.ErrorAs(t, err, &assignErr)
}

func TestWritePathErrors(t *testing.T) {
	tests := []struct {
		name        string
		target      interface{}
		path        string
		wantSegment string
	}{
		{"nil target", nil, "a.b", "a"},
		{"scalar in the way", map[string]interface{}{"a": "scalar"}, "a.b", "a"},
		{"index into map", map[string]interface{}{"a": map[string]interface{}{}}, "a[0]", "[0]"},
		{"name into sequence", map[string]interface{}{"a": []interface{}{1}}, "a.b", "b"},
		{"scalar target", "nope", "a", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WritePath(tt.target, tt.path, "v")
			var assignErr *errors.PropertyAssignmentError
			require.ErrorAs(t, err, &assignErr)
			assert.Equal(t, tt.path, assignErr.Path)
			assert.Equal(t, tt.wantSegment, assignErr.Segment)
		})
	}
}

func TestWritePathMalformed(t *testing.T) {
	for _, path := range []string{"", ".a", "a..b", "a[", "a[x]", "a[-1]"} {
		t.Run(path, func(t *testing.T) {
			err := WritePath(map[string]interface{}{}, path, "v")
			var assignErr *errors.PropertyAssignmentError
			require.ErrorAs(t, err, &assignErr)
		})
	}
}
