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

// Package fs implements the operation dispatcher: a fuseutil.FileSystem
// that composes the path resolver, directory merger, hash index and
// conflict detector into the VFS operation surface. All mount-scoped
// state lives in a single Dispatcher struct threaded explicitly through
// every method; there are no package-level singletons.
package fs

import (
	"context"
	"log/slog"
	"os"
	"path"
	"sync"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"golang.org/x/sys/unix"

	"github.com/google/agentfs/clock"
	"github.com/google/agentfs/internal/conflict"
	"github.com/google/agentfs/internal/fserrors"
	"github.com/google/agentfs/internal/handle"
	"github.com/google/agentfs/internal/hashindex"
	"github.com/google/agentfs/internal/inode"
	"github.com/google/agentfs/internal/layout"
	"github.com/google/agentfs/internal/merge"
	"github.com/google/agentfs/internal/resolver"
)

// ServerConfig bundles the parameters needed to construct a Dispatcher.
type ServerConfig struct {
	// Repo is the on-disk repository layout to serve.
	Repo *layout.Repo

	// ActiveAgent is the process-wide writer identity for this mount,
	// immutable for its lifetime.
	ActiveAgent string

	// Logger receives the dispatcher's warnings: failed hash recomputations
	// and detected conflicts.
	Logger *slog.Logger
}

// Dispatcher implements fuseutil.FileSystem over a layered repository. All
// shared mutable state (inode table, handle tables, hash index, conflict
// log) lives here rather than in package-level singletons.
type Dispatcher struct {
	repo        *layout.Repo
	activeAgent string
	logger      *slog.Logger

	resolver  *resolver.Resolver
	inodes    *inode.Table
	files     *handle.Files
	dirs      *handle.Dirs
	hashes    *hashindex.Index
	conflicts *conflict.Log

	// mu serialises mutations of the tables above. jacobsa/fuse may
	// dispatch ops from more than one worker goroutine, so this guards the
	// transition points between table lookups and physical I/O.
	mu sync.Mutex
}

var _ fuseutil.FileSystem = (*Dispatcher)(nil)

// New constructs a Dispatcher ready to be passed to fuse.Mount.
func New(cfg *ServerConfig) (*Dispatcher, error) {
	if cfg.ActiveAgent == "" {
		cfg.ActiveAgent = "default"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		repo:        cfg.Repo,
		activeAgent: cfg.ActiveAgent,
		logger:      logger,
		resolver:    resolver.New(cfg.Repo),
		inodes:      inode.New(),
		files:       handle.NewFiles(),
		dirs:        handle.NewDirs(),
		hashes:      hashindex.New(),
		conflicts:   conflict.NewLog(clock.RealClock{}),
	}, nil
}

// path resolves the logical path for an inode, failing with not-found if
// the inode is unknown (it should never be, since the kernel only ever
// references inodes this dispatcher has handed out).
func (fsys *Dispatcher) path(id fuseops.InodeID) (string, error) {
	p, ok := fsys.inodes.Path(id)
	if !ok {
		return "", fserrors.New(fserrors.KindNotFound, "inode", "", nil)
	}
	return p, nil
}

func childPath(parent string, name string) string {
	return resolver.Clean(path.Join(parent, name))
}

// StatFS reports aggregate space/inode usage of the repository root's
// backing filesystem.
func (fsys *Dispatcher) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	var st unix.Statfs_t
	if err := unix.Statfs(fsys.repo.Path, &st); err != nil {
		return fserrors.ToErrno(fserrors.IO("statfs", fsys.repo.Path, err))
	}

	op.BlockSize = uint32(st.Bsize)
	op.Blocks = st.Blocks
	op.BlocksFree = st.Bfree
	op.BlocksAvailable = st.Bavail
	op.Inodes = st.Files
	op.InodesFree = st.Ffree
	return nil
}

// LookUpInode resolves a child name within a parent directory, allocating
// an inode for it on first observation.
func (fsys *Dispatcher) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	parentPath, err := fsys.path(op.Parent)
	if err != nil {
		return fserrors.ToErrno(err)
	}

	childLogical := childPath(parentPath, op.Name)
	entry, ok := fsys.resolver.Resolve(childLogical)
	if !ok {
		return fserrors.ToErrno(fserrors.NotFound("lookup", childLogical))
	}

	attrs, err := lstatAttr(entry.Physical)
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

// GetInodeAttributes re-stats the inode's current resolved physical path.
func (fsys *Dispatcher) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	fsys.mu.Lock()
	p, err := fsys.path(op.Inode)
	fsys.mu.Unlock()
	if err != nil {
		return fserrors.ToErrno(err)
	}

	entry, ok := fsys.resolver.Resolve(p)
	if !ok {
		return fserrors.ToErrno(fserrors.NotFound("getattr", p))
	}

	attrs, err := lstatAttr(entry.Physical)
	if err != nil {
		return fserrors.ToErrno(err)
	}

	op.Attributes = attrs
	op.AttributesExpiration = deadline()
	return nil
}

// SetInodeAttributes applies chmod/truncate/utimes-style changes directly
// to the resolved physical path. Any change against a file resolved to a
// lower layer triggers copy-up first, matching the write path's
// materialisation discipline.
func (fsys *Dispatcher) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	p, err := fsys.path(op.Inode)
	if err != nil {
		return fserrors.ToErrno(err)
	}

	entry, ok := fsys.resolver.Resolve(p)
	if !ok {
		return fserrors.ToErrno(fserrors.NotFound("setattr", p))
	}

	physical := entry.Physical
	if entry.Layer != fsys.activeAgent {
		physical, err = fsys.copyUp(p, entry.Physical)
		if err != nil {
			return fserrors.ToErrno(err)
		}
	}

	if op.Size != nil {
		if err := os.Truncate(physical, int64(*op.Size)); err != nil {
			return fserrors.ToErrno(fserrors.IO("setattr", p, err))
		}
	}
	if op.Mode != nil {
		if err := os.Chmod(physical, *op.Mode); err != nil {
			return fserrors.ToErrno(fserrors.IO("setattr", p, err))
		}
	}
	if op.Atime != nil || op.Mtime != nil {
		atime, mtime := timesOf(physical)
		if op.Atime != nil {
			atime = *op.Atime
		}
		if op.Mtime != nil {
			mtime = *op.Mtime
		}
		if err := os.Chtimes(physical, atime, mtime); err != nil {
			return fserrors.ToErrno(fserrors.IO("setattr", p, err))
		}
	}

	attrs, err := lstatAttr(physical)
	if err != nil {
		return fserrors.ToErrno(err)
	}
	op.Attributes = attrs
	op.AttributesExpiration = deadline()
	return nil
}

// ForgetInode drops the kernel's reference to an inode.
func (fsys *Dispatcher) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	fsys.inodes.Forget(op.Inode, op.N)
	return nil
}

// BatchForget is ForgetInode applied to a batch, as the kernel may combine
// several forgets into one call under memory pressure.
func (fsys *Dispatcher) BatchForget(ctx context.Context, op *fuseops.BatchForgetOp) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	for _, e := range op.Entries {
		fsys.inodes.Forget(e.Inode, uint64(e.N))
	}
	return nil
}

// SyncFS is a whole-filesystem sync barrier. Every write already lands on
// the active layer through its handle's descriptor before the reply is
// sent, so there is nothing mount-wide left to flush here; per-handle
// durability is SyncFile/FlushFile's job.
func (fsys *Dispatcher) SyncFS(ctx context.Context, op *fuseops.SyncFSOp) error {
	return nil
}

// Destroy releases no resources of its own; open handles are expected to
// have already been released by the kernel before unmount.
func (fsys *Dispatcher) Destroy() {}

// Conflicts returns a snapshot of the in-memory conflict log. (The
// "conflicts" CLI subcommand reads the persisted conflicts.json instead.)
func (fsys *Dispatcher) Conflicts() []conflict.Record {
	return fsys.conflicts.Snapshot()
}

// ConflictLogPath is the repository's conflicts.json path, for callers that
// want to persist the in-memory log externally.
func (fsys *Dispatcher) ConflictLogPath() string {
	return fsys.repo.ConflictLogPath()
}

// checkConflict runs conflict detection for a pending write or rename
// against logical path p, whose resolved physical file is at physical. The hash is only computed when a prior record exists, so
// never-written paths cost nothing; a hash I/O failure degrades to "no
// conflict signal" (fail-open). Returns a resource-busy error with the
// conflict already recorded, or nil.
func (fsys *Dispatcher) checkConflict(op, p, physical string) error {
	if _, have := fsys.hashes.Lookup(p); !have {
		return nil
	}
	current, err := hashindex.Hash(physical)
	if err != nil {
		return nil
	}
	if rec := fsys.conflicts.Check(fsys.hashes, p, fsys.activeAgent, current); rec != nil {
		fsys.logger.Warn("conflict detected",
			"op", op,
			"path", p,
			"agent", rec.Agent,
			"expected_hash", rec.ExpectedHash,
			"actual_hash", rec.ActualHash)
		// Persist so the conflicts CLI can report without a live mount.
		// Persistence failure doesn't change the outcome; the in-memory
		// log stays authoritative.
		if err := fsys.conflicts.WriteJSON(fsys.repo.ConflictLogPath()); err != nil {
			fsys.logger.Warn("persisting conflict log failed", "error", err)
		}
		return fserrors.Busy(op, p)
	}
	return nil
}

// merged lists p's merged directory entries as handle.DirEntry values,
// allocating inodes for any name observed here for the first time.
func (fsys *Dispatcher) merged(dirPath string) ([]handle.DirEntry, error) {
	entries, err := merge.Enumerate(fsys.repo, dirPath)
	if err != nil {
		return nil, fserrors.IO("readdir", dirPath, err)
	}

	out := make([]handle.DirEntry, 0, len(entries))
	for _, e := range entries {
		childLogical := childPath(dirPath, e.Name)
		childEntry, ok := fsys.resolver.Resolve(childLogical)
		if !ok {
			continue
		}
		info, err := os.Lstat(childEntry.Physical)
		if err != nil {
			continue
		}
		out = append(out, handle.DirEntry{
			Name:  e.Name,
			Inode: fsys.inodes.LookUp(childLogical),
			Type:  direntType(info.Mode()),
		})
	}
	return out, nil
}
