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
	"errors"
	"io"
	"os"

	"github.com/jacobsa/fuse/fuseops"

	"github.com/google/agentfs/internal/fserrors"
	"github.com/google/agentfs/internal/hashindex"
)

// CreateFile creates an empty file in the active agent's layer, allocates
// an inode and a handle bound to it, and leaves the hash index with no
// recorded hash for the new path.
func (fsys *Dispatcher) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	parentPath, err := fsys.path(op.Parent)
	if err != nil {
		return fserrors.ToErrno(err)
	}
	childLogical := childPath(parentPath, op.Name)

	if err := fsys.repo.EnsureAgentDir(fsys.activeAgent); err != nil {
		return fserrors.ToErrno(fserrors.IO("create", childLogical, err))
	}
	physical := activePhysical(fsys, childLogical)

	f, err := os.OpenFile(physical, os.O_RDWR|os.O_CREATE|os.O_EXCL, op.Mode.Perm())
	if err != nil {
		if os.IsExist(err) {
			return fserrors.ToErrno(fserrors.Exists("create", childLogical))
		}
		return fserrors.ToErrno(fserrors.IO("create", childLogical, err))
	}
	fsys.resolver.Invalidate(childLogical)
	fsys.hashes.Forget(childLogical)

	attrs, err := lstatAttr(physical)
	if err != nil {
		f.Close()
		return fserrors.ToErrno(err)
	}

	id := fsys.inodes.LookUp(childLogical)
	op.Entry = fuseops.ChildInodeEntry{
		Child:                id,
		Attributes:           attrs,
		AttributesExpiration: deadline(),
		EntryExpiration:      deadline(),
	}
	op.Handle = fsys.files.Open(childLogical, f)
	return nil
}

// OpenFile resolves the inode and opens its current physical path. Opening
// never copies up; only a later WriteFile materialises the active agent's
// copy and rebinds the handle. The backing descriptor is opened read-write
// when the physical file permits it, falling back to read-only, since the
// kernel's access checks have already run against the attributes we
// reported.
func (fsys *Dispatcher) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	p, err := fsys.path(op.Inode)
	if err != nil {
		return fserrors.ToErrno(err)
	}

	entry, ok := fsys.resolver.Resolve(p)
	if !ok {
		return fserrors.ToErrno(fserrors.NotFound("open", p))
	}

	f, err := os.OpenFile(entry.Physical, os.O_RDWR, 0)
	if err != nil {
		f, err = os.OpenFile(entry.Physical, os.O_RDONLY, 0)
	}
	if err != nil {
		if os.IsPermission(err) {
			return fserrors.ToErrno(fserrors.Permission("open", p))
		}
		return fserrors.ToErrno(fserrors.IO("open", p, err))
	}

	op.Handle = fsys.files.Open(p, f)
	op.KeepPageCache = false
	return nil
}

// ReadFile seeks and reads on the handle's backing descriptor. Short
// reads at EOF are permitted.
func (fsys *Dispatcher) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	fsys.mu.Lock()
	h, ok := fsys.files.Get(op.Handle)
	fsys.mu.Unlock()
	if !ok {
		return fserrors.ToErrno(fserrors.BadHandle("read"))
	}

	n, err := h.FD().ReadAt(op.Dst, op.Offset)
	op.BytesRead = n
	if err != nil && !errors.Is(err, io.EOF) {
		return fserrors.ToErrno(fserrors.IO("read", h.Path, err))
	}
	return nil
}

// WriteFile runs conflict detection on the handle's logical path, copies
// up into the active agent's layer and rebinds the handle if necessary,
// then seeks and writes.
func (fsys *Dispatcher) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	h, ok := fsys.files.Get(op.Handle)
	if !ok {
		return fserrors.ToErrno(fserrors.BadHandle("write"))
	}

	entry, ok := fsys.resolver.Resolve(h.Path)
	if !ok {
		return fserrors.ToErrno(fserrors.NotFound("write", h.Path))
	}

	if err := fsys.checkConflict("write", h.Path, entry.Physical); err != nil {
		return fserrors.ToErrno(err)
	}

	if !h.CopiedUp && entry.Layer != fsys.activeAgent {
		activePath, err := fsys.copyUp(h.Path, entry.Physical)
		if err != nil {
			return fserrors.ToErrno(err)
		}
		nf, err := os.OpenFile(activePath, os.O_RDWR, 0)
		if err != nil {
			return fserrors.ToErrno(fserrors.IO("write", h.Path, err))
		}
		h.Rebind(nf)
		entry.Physical = activePath
	}

	if _, err := h.FD().WriteAt(op.Data, op.Offset); err != nil {
		return fserrors.ToErrno(fserrors.IO("write", h.Path, err))
	}

	// Recompute over the active agent's file, which is authoritative after
	// copy-up. Failures degrade to no entry update rather than failing the
	// committed write.
	newHash, err := hashindex.Hash(entry.Physical)
	if err == nil {
		fsys.hashes.Record(h.Path, newHash, fsys.activeAgent)
	} else {
		fsys.logger.Warn("hash recomputation failed", "path", h.Path, "error", err)
	}
	return nil
}

// SyncFile fsyncs the handle's backing descriptor.
func (fsys *Dispatcher) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) error {
	fsys.mu.Lock()
	h, ok := fsys.files.Get(op.Handle)
	fsys.mu.Unlock()
	if !ok {
		return fserrors.ToErrno(fserrors.BadHandle("fsync"))
	}
	if err := h.FD().Sync(); err != nil {
		return fserrors.ToErrno(fserrors.IO("fsync", h.Path, err))
	}
	return nil
}

// FlushFile is a barrier not tied to handle lifecycle: it syncs buffered
// writes but the handle remains valid for further calls. An unknown
// handle is ignored, as the kernel issues a flush for every close(2)
// including ones raced with release.
func (fsys *Dispatcher) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error {
	fsys.mu.Lock()
	h, ok := fsys.files.Get(op.Handle)
	fsys.mu.Unlock()
	if !ok {
		return nil
	}
	if err := h.FD().Sync(); err != nil {
		return fserrors.ToErrno(fserrors.IO("flush", h.Path, err))
	}
	return nil
}

// ReleaseFileHandle closes the backing descriptor and drops the handle.
// Releasing an unknown handle is a no-op.
func (fsys *Dispatcher) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	fsys.files.Release(op.Handle)
	return nil
}

// Unlink removes a name from the active agent's layer only. Not-found is
// reported only when the name resolves in no layer at all; a name backed
// solely by a lower layer unlinks successfully without removing anything,
// and remains visible in the merged view afterward (no whiteout is
// written).
func (fsys *Dispatcher) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	parentPath, err := fsys.path(op.Parent)
	if err != nil {
		return fserrors.ToErrno(err)
	}
	childLogical := childPath(parentPath, op.Name)

	if _, ok := fsys.resolver.Resolve(childLogical); !ok {
		return fserrors.ToErrno(fserrors.NotFound("unlink", childLogical))
	}

	physical := activePhysical(fsys, childLogical)
	if err := os.Remove(physical); err != nil && !os.IsNotExist(err) {
		return fserrors.ToErrno(fserrors.IO("unlink", childLogical, err))
	}

	fsys.resolver.Invalidate(childLogical)
	fsys.hashes.Forget(childLogical)
	if _, stillVisible := fsys.resolver.Resolve(childLogical); !stillVisible {
		if id, ok := fsys.inodes.ID(childLogical); ok {
			fsys.inodes.Forget(id, 1)
		}
	}
	return nil
}
