// Copyright 2025 Google LLC
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

// Package merge implements the directory merger: the union of entries
// across layers in deterministic order, upper layers shadowing lower
// ones. Each layer's listing is walked top-down into an ordered result
// keyed by name, so the first (topmost) occurrence of a name wins.
package merge

import (
	"os"
	"path"
	"strings"

	"github.com/google/agentfs/internal/layout"
)

// Entry is one merged directory entry: its basename and the layer whose
// copy is visible (the topmost layer containing that name).
type Entry struct {
	Name  string
	Layer string
}

// Enumerate returns the merged, deduplicated, ordered listing of
// directory p: agent-layer entries first, topmost (last-declared) agent
// first and each layer's names in filesystem order, then remaining base
// entries in filesystem order. "." and ".." are never
// emitted; the VFS layer synthesises them.
func Enumerate(repo *layout.Repo, p string) ([]Entry, error) {
	rel := strings.TrimPrefix(p, "/")

	seen := make(map[string]bool)
	var out []Entry

	for _, l := range repo.LayersTopDown() {
		dir := path.Join(l.Root, rel)
		names, err := readDirNames(dir)
		if err != nil {
			continue
		}
		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, Entry{Name: name, Layer: l.Name})
		}
	}

	return out, nil
}

// readDirNames lists the basenames of dir's entries, or (nil, err) if
// dir does not exist or is not a directory; in either case the caller
// treats that layer as contributing nothing.
func readDirNames(dir string) ([]string, error) {
	info, err := os.Lstat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, os.ErrInvalid
	}

	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}
