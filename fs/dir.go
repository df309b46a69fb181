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

package fs

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/google/agentfs/internal/fserrors"
	"github.com/google/agentfs/internal/resolver"
)

// MkDir creates a directory in the active agent's layer only.
func (fsys *Dispatcher) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	parentPath, err := fsys.path(op.Parent)
	if err != nil {
		return fserrors.ToErrno(err)
	}
	childLogical := childPath(parentPath, op.Name)

	if err := fsys.repo.EnsureAgentDir(fsys.activeAgent); err != nil {
		return fserrors.ToErrno(fserrors.IO("mkdir", childLogical, err))
	}
	physical := activePhysical(fsys, childLogical)
	if err := os.MkdirAll(filepath.Dir(physical), 0o755); err != nil {
		return fserrors.ToErrno(fserrors.IO("mkdir", childLogical, err))
	}
	if err := os.Mkdir(physical, op.Mode.Perm()); err != nil {
		if os.IsExist(err) {
			return fserrors.ToErrno(fserrors.Exists("mkdir", childLogical))
		}
		return fserrors.ToErrno(fserrors.IO("mkdir", childLogical, err))
	}
	fsys.resolver.Invalidate(childLogical)

	attrs, err := lstatAttr(physical)
	if err != nil {
		return fserrors.ToErrno(err)
	}

	id := fsys.inodes.LookUp(childLogical)
	op.Entry = fuseops.ChildInodeEntry{
		Child:                id,
		Attributes:           attrs,
		AttributesExpiration: deadline(),
		EntryExpiration:      deadline(),
	}
	return nil
}

// RmDir removes an empty directory from the active agent's layer only.
// No whiteouts are written, so a same-named lower-layer directory
// reappears in the merged view afterward.
func (fsys *Dispatcher) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	parentPath, err := fsys.path(op.Parent)
	if err != nil {
		return fserrors.ToErrno(err)
	}
	childLogical := childPath(parentPath, op.Name)
	physical := activePhysical(fsys, childLogical)

	if err := os.Remove(physical); err != nil {
		if os.IsNotExist(err) {
			return fserrors.ToErrno(fserrors.NotFound("rmdir", childLogical))
		}
		return fserrors.ToErrno(fserrors.IO("rmdir", childLogical, err))
	}

	fsys.resolver.Invalidate(childLogical)
	if id, ok := fsys.inodes.ID(childLogical); ok {
		fsys.inodes.Forget(id, 1)
	}
	return nil
}

// OpenDir snapshots the merged listing for a directory inode and hands
// back a handle over that snapshot. The merger re-reads each layer per
// call, so the snapshot is taken fresh on every OpenDir.
func (fsys *Dispatcher) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	p, err := fsys.path(op.Inode)
	if err != nil {
		return fserrors.ToErrno(err)
	}

	entries, err := fsys.merged(p)
	if err != nil {
		return fserrors.ToErrno(err)
	}

	op.Handle = fsys.dirs.Open(p, entries)
	return nil
}

// ReadDir serialises entries from the handle's snapshot starting at
// op.Offset, in the fuse_dirent wire format. Cookies are 1-indexed
// positions in the merged order.
func (fsys *Dispatcher) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	fsys.mu.Lock()
	d, ok := fsys.dirs.Get(op.Handle)
	fsys.mu.Unlock()
	if !ok {
		return fserrors.ToErrno(fserrors.BadHandle("readdir"))
	}

	idx := int(op.Offset)
	var n int
	for idx < len(d.Entries) {
		e := d.Entries[idx]
		written := fuseutil.WriteDirent(op.Dst[n:], fuseutil.Dirent{
			Offset: fuseops.DirOffset(idx + 1),
			Inode:  e.Inode,
			Name:   e.Name,
			Type:   e.Type,
		})
		if written == 0 {
			break
		}
		n += written
		idx++
	}

	op.BytesRead = n
	return nil
}

// ReadDirPlus is ReadDir with each entry's attributes attached, saving the
// kernel a LookUpInode round trip per name. Each emitted entry increments
// the child's lookup count exactly as a lookup would, since the kernel
// balances ReadDirPlus entries with forgets.
func (fsys *Dispatcher) ReadDirPlus(ctx context.Context, op *fuseops.ReadDirPlusOp) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	d, ok := fsys.dirs.Get(op.Handle)
	if !ok {
		return fserrors.ToErrno(fserrors.BadHandle("readdirplus"))
	}

	idx := int(op.Offset)
	var n int
	for idx < len(d.Entries) {
		e := d.Entries[idx]
		childLogical := childPath(d.Path, e.Name)

		// An entry may have vanished from its layer since the snapshot;
		// skip it rather than failing the whole listing.
		entry, ok := fsys.resolver.Resolve(childLogical)
		if !ok {
			idx++
			continue
		}
		attrs, err := lstatAttr(entry.Physical)
		if err != nil {
			idx++
			continue
		}

		written := fuseutil.WriteDirentPlus(op.Dst[n:], fuseutil.DirentPlus{
			Dirent: fuseutil.Dirent{
				Offset: fuseops.DirOffset(idx + 1),
				Inode:  e.Inode,
				Name:   e.Name,
				Type:   e.Type,
			},
			Entry: fuseops.ChildInodeEntry{
				Child:                fsys.inodes.LookUp(childLogical),
				Attributes:           attrs,
				AttributesExpiration: deadline(),
				EntryExpiration:      deadline(),
			},
		})
		if written == 0 {
			break
		}
		n += written
		idx++
	}

	op.BytesRead = n
	return nil
}

// ReleaseDirHandle drops a directory handle.
func (fsys *Dispatcher) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	fsys.dirs.Release(op.Handle)
	return nil
}

// activePhysical returns the physical path for p inside the active
// agent's layer, without testing existence.
func activePhysical(fsys *Dispatcher, p string) string {
	return resolver.PhysicalIn(fsys.repo.AgentDir(fsys.activeAgent), p)
}
