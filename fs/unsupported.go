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

	"github.com/jacobsa/fuse/fuseops"

	"github.com/google/agentfs/internal/fserrors"
)

// Device nodes, hard links and extended attributes have no place in an
// agent's overlay of plain files and directories, and preallocation has
// no meaning across a copy-up boundary. Each returns ENOTSUP rather than
// being silently absent from the interface, so a caller gets a clear
// answer instead of a kernel-level "function not implemented".

func (fsys *Dispatcher) MkNode(ctx context.Context, op *fuseops.MkNodeOp) error {
	return fserrors.ToErrno(fserrors.NotSupported("mknod"))
}

func (fsys *Dispatcher) CreateLink(ctx context.Context, op *fuseops.CreateLinkOp) error {
	return fserrors.ToErrno(fserrors.NotSupported("link"))
}

func (fsys *Dispatcher) RemoveXattr(ctx context.Context, op *fuseops.RemoveXattrOp) error {
	return fserrors.ToErrno(fserrors.NotSupported("removexattr"))
}

func (fsys *Dispatcher) GetXattr(ctx context.Context, op *fuseops.GetXattrOp) error {
	return fserrors.ToErrno(fserrors.NotSupported("getxattr"))
}

func (fsys *Dispatcher) ListXattr(ctx context.Context, op *fuseops.ListXattrOp) error {
	return fserrors.ToErrno(fserrors.NotSupported("listxattr"))
}

func (fsys *Dispatcher) SetXattr(ctx context.Context, op *fuseops.SetXattrOp) error {
	return fserrors.ToErrno(fserrors.NotSupported("setxattr"))
}

func (fsys *Dispatcher) Fallocate(ctx context.Context, op *fuseops.FallocateOp) error {
	return fserrors.ToErrno(fserrors.NotSupported("fallocate"))
}
