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
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/fieldflow/fieldflow/internal/log"
)

// debounceDelay coalesces the burst of fsnotify events most editors
// produce for a single save.
const debounceDelay = 200 * time.Millisecond

func newWatchCommand() *cobra.Command {
	var (
		formPath  string
		modelPath string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the check pass whenever the definition or model changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(formPath, modelPath)
		},
	}

	cmd.Flags().StringVarP(&formPath, "form", "f", "", "Path to the form definition YAML (required)")
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "Path to a model JSON file (optional)")
	cmd.MarkFlagRequired("form")

	return cmd
}

func runWatch(formPath, modelPath string) error {
	logger := log.WithComponent(log.New(log.FromEnv()), "watch")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the parent directories rather than the files themselves so
	// rename-and-replace saves keep being observed.
	watched := map[string]bool{}
	for _, p := range []string{formPath, modelPath} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolving path %s: %w", p, err)
		}
		watched[abs] = true
		dir := filepath.Dir(abs)
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	runOnce := func() {
		if err := runCheck(formPath, modelPath, false, os.Stdout); err != nil {
			logger.Error("check pass failed", log.Error(err))
		}
	}
	runOnce()
	logger.Info("watching for changes", "form", formPath, "model", modelPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var debounce *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !watched[abs] {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			runOnce()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", log.Error(err))
		case <-sigCh:
			logger.Info("shutting down")
			return nil
		}
	}
}
