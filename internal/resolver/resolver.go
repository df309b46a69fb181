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

// Package resolver implements the layered namespace resolver: given a
// logical path, find the physical path and owning layer in the topmost
// layer that contains it.
//
// A small cache sits in front of the per-call layer scan. It does not
// change resolution semantics: every write-path operation invalidates the
// touched paths through the same code path that mutates the active layer,
// so a cached entry is never served stale past a local mutation.
package resolver

import (
	"os"
	"path"
	"strings"
	"sync"

	"github.com/google/agentfs/internal/layout"
)

// Entry is a resolved logical path: its backing physical path and the name
// of the layer it was found in ("base" or an agent name).
type Entry struct {
	Physical string
	Layer    string
}

// Resolver resolves logical paths against a repository's layer stack.
type Resolver struct {
	repo *layout.Repo

	mu    sync.RWMutex
	cache map[string]Entry
}

// New returns a Resolver over repo's current layer stack.
func New(repo *layout.Repo) *Resolver {
	return &Resolver{repo: repo, cache: make(map[string]Entry)}
}

// Clean canonicalises a logical path to begin with "/" and, except for
// root itself, have no trailing slash.
func Clean(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = path.Clean(p)
	return p
}

// Resolve scans agent layers topmost-first, then base, for the first
// layer whose physical path exists (via Lstat, preserving symlink
// identity so readlink can return the original target). It returns
// ok=false if no layer contains p.
func (r *Resolver) Resolve(p string) (Entry, bool) {
	p = Clean(p)

	if p == "/" {
		return Entry{Physical: r.repo.BaseDir(), Layer: "base"}, true
	}

	r.mu.RLock()
	if e, ok := r.cache[p]; ok {
		r.mu.RUnlock()
		return e, true
	}
	r.mu.RUnlock()

	rel := strings.TrimPrefix(p, "/")
	for _, l := range r.repo.LayersTopDown() {
		phys := path.Join(l.Root, rel)
		if _, err := os.Lstat(phys); err == nil {
			e := Entry{Physical: phys, Layer: l.Name}
			r.mu.Lock()
			r.cache[p] = e
			r.mu.Unlock()
			return e, true
		}
	}

	return Entry{}, false
}

// Invalidate drops any cached resolution for p and for every path below
// it. Every write-path operation (create, write, unlink, rename, mkdir,
// rmdir, symlink) must call this for every logical path it touches before
// the next Resolve can be trusted.
func (r *Resolver) Invalidate(p string) {
	p = Clean(p)
	prefix := strings.TrimSuffix(p, "/") + "/"
	r.mu.Lock()
	delete(r.cache, p)
	for k := range r.cache {
		if strings.HasPrefix(k, prefix) {
			delete(r.cache, k)
		}
	}
	r.mu.Unlock()
}

// PhysicalIn returns the physical path for p inside a specific layer,
// without testing existence. Used by the copy-up path to compute the
// active agent's target location before it exists.
func PhysicalIn(layerRoot, p string) string {
	p = Clean(p)
	return path.Join(layerRoot, strings.TrimPrefix(p, "/"))
}
