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

	"github.com/jacobsa/fuse/fuseops"

	"github.com/google/agentfs/internal/fserrors"
)

// CreateSymlink creates a symlink in the active agent's layer pointing at
// target verbatim.
func (fsys *Dispatcher) CreateSymlink(ctx context.Context, op *fuseops.CreateSymlinkOp) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	parentPath, err := fsys.path(op.Parent)
	if err != nil {
		return fserrors.ToErrno(err)
	}
	childLogical := childPath(parentPath, op.Name)

	if err := fsys.repo.EnsureAgentDir(fsys.activeAgent); err != nil {
		return fserrors.ToErrno(fserrors.IO("symlink", childLogical, err))
	}
	physical := activePhysical(fsys, childLogical)

	if err := os.Symlink(op.Target, physical); err != nil {
		if os.IsExist(err) {
			return fserrors.ToErrno(fserrors.Exists("symlink", childLogical))
		}
		return fserrors.ToErrno(fserrors.IO("symlink", childLogical, err))
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

// ReadSymlink returns the verbatim link target.
func (fsys *Dispatcher) ReadSymlink(ctx context.Context, op *fuseops.ReadSymlinkOp) error {
	fsys.mu.Lock()
	p, err := fsys.path(op.Inode)
	fsys.mu.Unlock()
	if err != nil {
		return fserrors.ToErrno(err)
	}

	entry, ok := fsys.resolver.Resolve(p)
	if !ok {
		return fserrors.ToErrno(fserrors.NotFound("readlink", p))
	}

	target, err := os.Readlink(entry.Physical)
	if err != nil {
		if os.IsNotExist(err) {
			return fserrors.ToErrno(fserrors.NotFound("readlink", p))
		}
		return fserrors.ToErrno(fserrors.InvalidArgument("readlink", p))
	}

	op.Target = target
	return nil
}
