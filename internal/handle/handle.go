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

// Package handle implements the file-handle and directory-handle tables:
// opaque integer handles bound to an open backing descriptor
// (or, for directories, a cached merged listing) and the logical path used
// at open time. Handles decouple the VFS from physical backing so copy-up,
// rename, and resolver changes never invalidate an already-open file.
package handle

import (
	"os"
	"sync"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
)

// File is an open regular file: the logical path it was opened under and
// the backing descriptor currently satisfying reads and writes. CopiedUp
// records whether this handle has been rebound to the active agent's
// copy-up target.
type File struct {
	mu       sync.Mutex
	Path     string
	f        *os.File
	CopiedUp bool
}

// Rebind swaps the backing descriptor for f, closing the old one. Used
// when a write triggers copy-up on a handle that was opened against a
// lower layer's physical file.
func (f *File) Rebind(nf *os.File) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.f != nil {
		f.f.Close()
	}
	f.f = nf
	f.CopiedUp = true
}

// FD returns the current backing descriptor.
func (f *File) FD() *os.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.f
}

// Close closes the backing descriptor. Safe to call more than once.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}

// Dir is an open directory handle: the logical path and a snapshot of its
// merged listing taken at OpenDir time, indexed by the 1-based cookie the
// dispatcher hands back to the kernel across ReadDir calls.
type Dir struct {
	Path    string
	Entries []DirEntry
}

// DirEntry is one merged, attributed directory entry ready to be encoded
// into a ReadDirOp response.
type DirEntry struct {
	Name  string
	Inode fuseops.InodeID
	Type  fuseutil.DirentType
}

// Files is the table of open file handles.
type Files struct {
	mu   sync.Mutex
	next fuseops.HandleID
	m    map[fuseops.HandleID]*File
}

// NewFiles returns an empty file-handle table.
func NewFiles() *Files {
	return &Files{next: 1, m: make(map[fuseops.HandleID]*File)}
}

// Open allocates a new handle bound to f at path.
func (t *Files) Open(path string, f *os.File) fuseops.HandleID {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.next
	t.next++
	t.m[id] = &File{Path: path, f: f}
	return id
}

// Get returns the File bound to id, if any.
func (t *Files) Get(id fuseops.HandleID) (*File, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.m[id]
	return f, ok
}

// Release closes and drops id's binding. Releasing an unknown handle is a
// no-op.
func (t *Files) Release(id fuseops.HandleID) {
	t.mu.Lock()
	f, ok := t.m[id]
	delete(t.m, id)
	t.mu.Unlock()

	if ok {
		f.Close()
	}
}

// Dirs is the table of open directory handles.
type Dirs struct {
	mu   sync.Mutex
	next fuseops.HandleID
	m    map[fuseops.HandleID]*Dir
}

// NewDirs returns an empty directory-handle table.
func NewDirs() *Dirs {
	return &Dirs{next: 1, m: make(map[fuseops.HandleID]*Dir)}
}

// Open allocates a new directory handle over path with the given snapshot
// of merged entries.
func (t *Dirs) Open(path string, entries []DirEntry) fuseops.HandleID {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.next
	t.next++
	t.m[id] = &Dir{Path: path, Entries: entries}
	return id
}

// Get returns the Dir bound to id, if any.
func (t *Dirs) Get(id fuseops.HandleID) (*Dir, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.m[id]
	return d, ok
}

// Release drops id's binding. A no-op for an unknown handle.
func (t *Dirs) Release(id fuseops.HandleID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, id)
}
