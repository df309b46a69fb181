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

	"github.com/google/agentfs/internal/fserrors"
)

// Rename moves a name within the active agent's layer. A name that only
// exists in a lower layer must be copied up before it can be renamed;
// rather than copy up transparently here, a
// rename of a lower-layer-only entry is rejected as cross-device, so the
// copy-up discipline stays at the write path instead of growing a second
// implicit one here. Conflict detection runs before the cross-device
// check, so a diverged file is reported busy rather than cross-device.
func (fsys *Dispatcher) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	oldParentPath, err := fsys.path(op.OldParent)
	if err != nil {
		return fserrors.ToErrno(err)
	}
	newParentPath, err := fsys.path(op.NewParent)
	if err != nil {
		return fserrors.ToErrno(err)
	}

	oldLogical := childPath(oldParentPath, op.OldName)
	newLogical := childPath(newParentPath, op.NewName)

	entry, ok := fsys.resolver.Resolve(oldLogical)
	if !ok {
		return fserrors.ToErrno(fserrors.NotFound("rename", oldLogical))
	}

	if err := fsys.checkConflict("rename", oldLogical, entry.Physical); err != nil {
		return fserrors.ToErrno(err)
	}

	if entry.Layer != fsys.activeAgent {
		return fserrors.ToErrno(fserrors.CrossDevice("rename", oldLogical))
	}

	if err := fsys.repo.EnsureAgentDir(fsys.activeAgent); err != nil {
		return fserrors.ToErrno(fserrors.IO("rename", oldLogical, err))
	}
	newPhysical := activePhysical(fsys, newLogical)
	if err := os.MkdirAll(filepath.Dir(newPhysical), 0o755); err != nil {
		return fserrors.ToErrno(fserrors.IO("rename", newLogical, err))
	}

	if err := os.Rename(entry.Physical, newPhysical); err != nil {
		return fserrors.ToErrno(fserrors.IO("rename", oldLogical, err))
	}

	fsys.resolver.Invalidate(oldLogical)
	fsys.resolver.Invalidate(newLogical)
	fsys.hashes.Rename(oldLogical, newLogical)
	fsys.inodes.Rename(oldLogical, newLogical)
	return nil
}
