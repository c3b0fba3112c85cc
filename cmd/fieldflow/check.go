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

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldflow/fieldflow/internal/log"
	"github.com/fieldflow/fieldflow/pkg/form"
)

// eventRecord is the JSON shape written to stdout for each engine event.
type eventRecord struct {
	Type     string      `json:"type"`
	Field    string      `json:"field"`
	Property string      `json:"property,omitempty"`
	Value    interface{} `json:"value"`
}

func newCheckCommand() *cobra.Command {
	var (
		formPath  string
		modelPath string
		showModel bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single check pass over a form definition",
		Long: `Load a form definition, attach its expressions to a model, and run one
check pass. Every event the pass produces is written to stdout as a JSON
line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(formPath, modelPath, showModel, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&formPath, "form", "f", "", "Path to the form definition YAML (required)")
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "Path to a model JSON file (optional)")
	cmd.Flags().BoolVar(&showModel, "show-model", false, "Print the final model as JSON after the pass")
	cmd.MarkFlagRequired("form")

	return cmd
}

func runCheck(formPath, modelPath string, showModel bool, out *os.File) error {
	def, err := form.ParseFile(formPath)
	if err != nil {
		return err
	}

	model, err := loadModel(modelPath)
	if err != nil {
		return err
	}

	root := def.Build()

	logger := log.New(log.FromEnv())
	engine := form.New(root,
		form.WithModel(model),
		form.WithLogger(logger),
	)

	enc := json.NewEncoder(out)
	engine.Events().OnAny(func(e *form.Event) error {
		return enc.Encode(eventRecord{
			Type:     string(e.Type),
			Field:    e.Field.Key,
			Property: e.Property,
			Value:    e.Value,
		})
	})

	if err := engine.AttachExpressions(nil); err != nil {
		return err
	}
	engine.OnInit(nil)
	defer engine.OnDestroy(nil)

	if showModel {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(engine.Model()); err != nil {
			return fmt.Errorf("encoding model: %w", err)
		}
	}
	return nil
}

func loadModel(path string) (interface{}, error) {
	if path == "" {
		return map[string]interface{}{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}
	var model interface{}
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("parsing model file %s: %w", path, err)
	}
	return model, nil
}
