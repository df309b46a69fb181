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

// Package inode assigns stable integer inode numbers to observed logical
// paths. The root inode is a fixed constant pinned to
// "/"; every other inode is handed out from a monotonically increasing
// counter and is stable for the lifetime of the mount (inodes are never
// persisted and never reused, even after Forget, matching the fuseops
// contract that an inode ID must not be recycled while the kernel may
// still reference it).
package inode

import (
	"sync"

	"github.com/jacobsa/fuse/fuseops"
)

// RootID is the reserved inode number for "/".
const RootID = fuseops.RootInodeID

// Table is the bidirectional inode <-> logical-path map plus per-inode
// lookup counts. All methods are safe for concurrent use.
type Table struct {
	mu sync.Mutex

	next   fuseops.InodeID
	byID   map[fuseops.InodeID]*entry
	byPath map[string]fuseops.InodeID
}

type entry struct {
	path        string
	lookupCount uint64
}

// New returns a Table with only the root inode registered.
func New() *Table {
	t := &Table{
		next:   RootID + 1,
		byID:   make(map[fuseops.InodeID]*entry),
		byPath: make(map[string]fuseops.InodeID),
	}
	root := &entry{path: "/"}
	t.byID[RootID] = root
	t.byPath["/"] = RootID
	return t
}

// LookUp returns the inode for path, allocating one if path has never
// been observed before, and increments its lookup count. The caller is
// responsible for having already confirmed
// path resolves to something; LookUp itself does not consult the resolver.
func (t *Table) LookUp(path string) fuseops.InodeID {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.byPath[path]; ok {
		t.byID[id].lookupCount++
		return id
	}

	id := t.next
	t.next++
	e := &entry{path: path, lookupCount: 1}
	t.byID[id] = e
	t.byPath[path] = id
	return id
}

// Path returns the logical path currently mapped to id, or "" if id is
// unknown (already forgotten, or never allocated).
func (t *Table) Path(id fuseops.InodeID) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[id]
	if !ok {
		return "", false
	}
	return e.path, true
}

// ID returns the inode currently mapped to path, if any, without
// allocating one.
func (t *Table) ID(path string) (fuseops.InodeID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byPath[path]
	return id, ok
}

// Forget decrements id's lookup count by n, removing it from both maps if
// the count reaches zero (the kernel's ForgetInode contract). The root
// inode is never removed.
func (t *Table) Forget(id fuseops.InodeID, n uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byID[id]
	if !ok {
		return
	}
	if id == RootID {
		return
	}

	if n >= e.lookupCount {
		delete(t.byID, id)
		delete(t.byPath, e.path)
		return
	}
	e.lookupCount -= n
}

// Rename atomically rewrites both directions of the inode<->path map when
// a logical path moves, preserving the inode integer across the move. It
// is a no-op if oldPath has no
// registered inode (the destination inherits nothing from a non-existent
// source).
func (t *Table) Rename(oldPath, newPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, ok := t.byPath[oldPath]
	if !ok {
		return
	}

	delete(t.byPath, oldPath)
	if existing, ok := t.byPath[newPath]; ok && existing != id {
		delete(t.byID, existing)
	}
	t.byPath[newPath] = id
	t.byID[id].path = newPath
}
