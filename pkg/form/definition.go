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
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fieldflow/fieldflow/pkg/errors"
)

// Definition is a YAML-based field tree definition.
//
// Only path-string expressions can appear in a definition; callable and
// async-source expressions are bound programmatically after loading.
//
// Example:
//
//	name: signup
//	fields:
//	  - key: name
//	    templateOptions:
//	      label: Name
//	  - key: nickname
//	    hideExpression: "!model.name"
//	    expressions:
//	      templateOptions.label: "model.name"
type Definition struct {
	// Name identifies the form.
	Name string `yaml:"name" json:"name"`

	// Description provides human-readable context about the form.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Fields are the top-level field definitions.
	Fields []FieldDefinition `yaml:"fields" json:"fields"`
}

// FieldDefinition describes one field node.
type FieldDefinition struct {
	// Key identifies the field within its model scope.
	Key string `yaml:"key,omitempty" json:"key,omitempty"`

	// Hide is the declared hide flag; omitted means undeclared.
	Hide *bool `yaml:"hide,omitempty" json:"hide,omitempty"`

	// HideExpression is a path-string visibility expression.
	HideExpression string `yaml:"hideExpression,omitempty" json:"hideExpression,omitempty"`

	// Disabled is the declared disabled flag.
	Disabled *bool `yaml:"disabled,omitempty" json:"disabled,omitempty"`

	// Expressions maps target property paths to path-string expressions,
	// in declaration order.
	Expressions ExpressionList `yaml:"expressions,omitempty" json:"expressions,omitempty"`

	// TemplateOptions carries presentation properties.
	TemplateOptions map[string]interface{} `yaml:"templateOptions,omitempty" json:"templateOptions,omitempty"`

	// ClassName is an arbitrary styling hook.
	ClassName string `yaml:"className,omitempty" json:"className,omitempty"`

	// Fields nests a group of child definitions.
	Fields []FieldDefinition `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// ExpressionEntry is one target-property-to-expression binding.
type ExpressionEntry struct {
	Property   string
	Expression string
}

// ExpressionList holds a field's expression bindings in declaration
// order. YAML mappings keep their key order in the parsed node, and the
// order decides which of two expressions targeting the same property
// wins: the later-declared one writes last.
type ExpressionList []ExpressionEntry

// UnmarshalYAML decodes a YAML mapping while preserving its key order.
func (l *ExpressionList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expressions must be a mapping")
	}
	entries := make(ExpressionList, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var entry ExpressionEntry
		if err := node.Content[i].Decode(&entry.Property); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&entry.Expression); err != nil {
			return err
		}
		entries = append(entries, entry)
	}
	*l = entries
	return nil
}

// MarshalYAML renders the list back as a mapping in declaration order.
func (l ExpressionList) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, entry := range l {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: entry.Property},
			&yaml.Node{Kind: yaml.ScalarNode, Value: entry.Expression},
		)
	}
	return node, nil
}

// LoadDefinition parses a YAML definition. Unknown keys are rejected.
func LoadDefinition(data []byte) (*Definition, error) {
	var def Definition
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&def); err != nil {
		return nil, &errors.DefinitionError{Message: "cannot decode YAML", Cause: err}
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// ParseFile loads a definition from a YAML file.
func ParseFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.DefinitionError{Message: fmt.Sprintf("cannot read %s", path), Cause: err}
	}
	return LoadDefinition(data)
}

// Validate checks structural constraints.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return &errors.DefinitionError{Field: "name", Message: "form name is required"}
	}
	if len(d.Fields) == 0 {
		return &errors.DefinitionError{Field: "fields", Message: "at least one field is required"}
	}
	for i := range d.Fields {
		if err := d.Fields[i].validate(fmt.Sprintf("fields[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func (fd *FieldDefinition) validate(position string) error {
	if fd.Key == "" && len(fd.Fields) == 0 {
		return &errors.DefinitionError{Field: position, Message: "field needs a key or nested fields"}
	}
	for i := range fd.Fields {
		if err := fd.Fields[i].validate(fmt.Sprintf("%s.fields[%d]", position, i)); err != nil {
			return err
		}
	}
	return nil
}

// Build converts the definition into a field tree rooted in an unkeyed
// group, ready for Engine.AttachExpressions.
func (d *Definition) Build() *Field {
	root := &Field{}
	for i := range d.Fields {
		root.Children = append(root.Children, d.Fields[i].build())
	}
	return root
}

func (fd *FieldDefinition) build() *Field {
	f := &Field{
		Key:             fd.Key,
		Hide:            fd.Hide,
		Disabled:        fd.Disabled,
		TemplateOptions: fd.TemplateOptions,
		ClassName:       fd.ClassName,
	}
	if fd.HideExpression != "" {
		f.HideExpression = fd.HideExpression
	}
	if len(fd.Expressions) > 0 {
		f.Expressions = make(map[string]interface{}, len(fd.Expressions))
		for _, entry := range fd.Expressions {
			if _, seen := f.Expressions[entry.Property]; seen {
				// A repeated key keeps its later position; the later
				// declaration wins.
				f.ExpressionOrder = removeString(f.ExpressionOrder, entry.Property)
			}
			f.Expressions[entry.Property] = entry.Expression
			f.ExpressionOrder = append(f.ExpressionOrder, entry.Property)
		}
	}
	for i := range fd.Fields {
		f.Children = append(f.Children, fd.Fields[i].build())
	}
	return f
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
