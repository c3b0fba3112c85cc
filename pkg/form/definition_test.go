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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldflow/fieldflow/pkg/errors"
)

const signupYAML = `
name: signup
description: signup form
fields:
  - key: name
    templateOptions:
      label: Name
      required: true
  - key: nickname
    hideExpression: "!model.name"
    expressions:
      templateOptions.label: "model.name"
  - key: address
    fields:
      - key: street
      - key: city
        hide: true
`

func TestLoadDefinition(t *testing.T) {
	def, err := LoadDefinition([]byte(signupYAML))
	require.NoError(t, err)

	assert.Equal(t, "signup", def.Name)
	require.Len(t, def.Fields, 3)
	assert.Equal(t, "Name", def.Fields[0].TemplateOptions["label"])
	assert.Equal(t, "!model.name", def.Fields[1].HideExpression)
	require.Len(t, def.Fields[2].Fields, 2)
	require.NotNil(t, def.Fields[2].Fields[1].Hide)
	assert.True(t, *def.Fields[2].Fields[1].Hide)
}

func TestLoadDefinitionErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "name: x\nfields:\n  - key: a\n    bogus: 1\n"},
		{"missing name", "fields:\n  - key: a\n"},
		{"no fields", "name: x\n"},
		{"keyless leaf", "name: x\nfields:\n  - className: c\n"},
		{"not yaml", ":\n::\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDefinition([]byte(tt.yaml))
			var defErr *errors.DefinitionError
			require.ErrorAs(t, err, &defErr)
		})
	}
}

func TestDefinitionBuildRunsEndToEnd(t *testing.T) {
	def, err := LoadDefinition([]byte(signupYAML))
	require.NoError(t, err)

	root := def.Build()
	require.Len(t, root.Children, 3)

	model := map[string]interface{}{}
	e := New(root, WithModel(model))
	require.NoError(t, e.AttachExpressions(nil))
	e.OnInit(nil)

	nickname := root.Children[1]
	assert.True(t, nickname.Hidden(), "nickname hides while model.name is empty")

	model["name"] = "ada"
	require.NoError(t, e.CheckField(nil))
	assert.False(t, nickname.Hidden())
	assert.Equal(t, "ada", nickname.Prop("templateOptions.label"))

	city := root.Children[2].Children[1]
	assert.True(t, city.Hidden(), "declared hide applies")
}

func TestExpressionsKeepDeclarationOrder(t *testing.T) {
	yamlDef := `
name: ordered
fields:
  - key: who
    expressions:
      model.greeting: "formState.greeting"
      model.banner: "model.greeting"
`
	def, err := LoadDefinition([]byte(yamlDef))
	require.NoError(t, err)

	want := ExpressionList{
		{Property: "model.greeting", Expression: "formState.greeting"},
		{Property: "model.banner", Expression: "model.greeting"},
	}
	assert.Equal(t, want, def.Fields[0].Expressions)

	root := def.Build()
	assert.Equal(t, []string{"model.greeting", "model.banner"}, root.Children[0].ExpressionOrder)

	// Lexicographic order would resolve model.banner before the greeting
	// exists; declaration order sees the value written one line above.
	model := map[string]interface{}{}
	e := New(root,
		WithModel(model),
		WithFormState(map[string]interface{}{"greeting": "hello"}),
	)
	require.NoError(t, e.AttachExpressions(nil))

	assert.Equal(t, "hello", model["greeting"])
	assert.Equal(t, "hello", model["banner"])
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "form.yaml")
	require.NoError(t, os.WriteFile(path, []byte(signupYAML), 0o644))

	def, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "signup", def.Name)

	_, err = ParseFile(filepath.Join(dir, "missing.yaml"))
	var defErr *errors.DefinitionError
	require.ErrorAs(t, err, &defErr)
}
