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

// Package metrics wraps a fuseutil.FileSystem with Prometheus counters
// and latency histograms, one set of series per VFS operation. The
// decorator delegates every call to the wrapped implementation and
// records the outcome; errors are bucketed into a fixed set of
// categories to keep series cardinality bounded.
package metrics

import (
	"context"
	"net/http"
	"syscall"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Error categories for the ops counter's error label.
const (
	errIO             = "io"
	errDirNotEmpty    = "dir_not_empty"
	errFileExists     = "file_exists"
	errInvalidArg     = "invalid_argument"
	errInterrupt      = "interrupt"
	errNotImplemented = "not_implemented"
	errProcessMgmt    = "process_mgmt"
	errInvalidOp      = "invalid_op"
	errNetwork        = "network"
	errMisc           = "misc"
	errDevice         = "device"
	errFileDir        = "file_dir"
	errTooManyFiles   = "too_many_files"
	errPerm           = "perm"
	errNone           = "none"
)

// categorize buckets an error returned from the wrapped FileSystem into a
// fixed cardinality label for the ops counter, so the exported metric
// doesn't grow one series per distinct error string.
func categorize(err error) string {
	if err == nil {
		return errNone
	}
	var errno syscall.Errno
	if e, ok := err.(syscall.Errno); ok {
		errno = e
	} else {
		return errIO
	}

	switch errno {
	case syscall.ENOTEMPTY:
		return errDirNotEmpty
	case syscall.EEXIST:
		return errFileExists
	case syscall.EINVAL:
		return errInvalidArg
	case syscall.EINTR:
		return errInterrupt
	case syscall.ENOSYS, syscall.ENOTSUP:
		return errNotImplemented
	case syscall.ENOSPC:
		return errProcessMgmt
	case syscall.E2BIG:
		return errInvalidOp
	case syscall.EHOSTDOWN, syscall.ENETDOWN, syscall.ENETUNREACH:
		return errNetwork
	case syscall.ENODATA:
		return errMisc
	case syscall.ENODEV:
		return errDevice
	case syscall.EISDIR, syscall.ENOTDIR:
		return errFileDir
	case syscall.ENFILE, syscall.EMFILE:
		return errTooManyFiles
	case syscall.EPERM, syscall.EACCES:
		return errPerm
	case syscall.ENOENT, syscall.EBADF, syscall.EBUSY, syscall.EXDEV:
		return errIO
	default:
		return errIO
	}
}

// FileSystem wraps another fuseutil.FileSystem, recording a call counter and
// a latency histogram labelled by operation name and error category before
// delegating to the wrapped implementation.
type FileSystem struct {
	wrapped fuseutil.FileSystem

	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// Wrap constructs a metrics-recording decorator around wrapped,
// registering its series on reg (pass prometheus.DefaultRegisterer to
// use the global registry).
func Wrap(wrapped fuseutil.FileSystem, reg prometheus.Registerer) *FileSystem {
	factory := promauto.With(reg)
	return &FileSystem{
		wrapped: wrapped,
		calls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentfs",
			Name:      "fs_ops_total",
			Help:      "Count of filesystem operations by op and error category.",
		}, []string{"op", "error"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentfs",
			Name:      "fs_op_duration_seconds",
			Help:      "Latency of filesystem operations by op.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

// Handler serves g's metrics in the Prometheus text exposition format, to
// be mounted at /metrics by the mount command. Pass the same registry the
// decorator's series were registered on.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *FileSystem) record(op string, start time.Time, err error) {
	m.calls.WithLabelValues(op, categorize(err)).Inc()
	m.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *FileSystem) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	start := time.Now()
	err := m.wrapped.StatFS(ctx, op)
	m.record("StatFS", start, err)
	return err
}

func (m *FileSystem) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	start := time.Now()
	err := m.wrapped.LookUpInode(ctx, op)
	m.record("LookUpInode", start, err)
	return err
}

func (m *FileSystem) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	start := time.Now()
	err := m.wrapped.GetInodeAttributes(ctx, op)
	m.record("GetInodeAttributes", start, err)
	return err
}

func (m *FileSystem) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	start := time.Now()
	err := m.wrapped.SetInodeAttributes(ctx, op)
	m.record("SetInodeAttributes", start, err)
	return err
}

func (m *FileSystem) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	start := time.Now()
	err := m.wrapped.ForgetInode(ctx, op)
	m.record("ForgetInode", start, err)
	return err
}

func (m *FileSystem) BatchForget(ctx context.Context, op *fuseops.BatchForgetOp) error {
	start := time.Now()
	err := m.wrapped.BatchForget(ctx, op)
	m.record("BatchForget", start, err)
	return err
}

func (m *FileSystem) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	start := time.Now()
	err := m.wrapped.MkDir(ctx, op)
	m.record("MkDir", start, err)
	return err
}

func (m *FileSystem) MkNode(ctx context.Context, op *fuseops.MkNodeOp) error {
	start := time.Now()
	err := m.wrapped.MkNode(ctx, op)
	m.record("MkNode", start, err)
	return err
}

func (m *FileSystem) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	start := time.Now()
	err := m.wrapped.CreateFile(ctx, op)
	m.record("CreateFile", start, err)
	return err
}

func (m *FileSystem) CreateLink(ctx context.Context, op *fuseops.CreateLinkOp) error {
	start := time.Now()
	err := m.wrapped.CreateLink(ctx, op)
	m.record("CreateLink", start, err)
	return err
}

func (m *FileSystem) CreateSymlink(ctx context.Context, op *fuseops.CreateSymlinkOp) error {
	start := time.Now()
	err := m.wrapped.CreateSymlink(ctx, op)
	m.record("CreateSymlink", start, err)
	return err
}

func (m *FileSystem) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	start := time.Now()
	err := m.wrapped.Rename(ctx, op)
	m.record("Rename", start, err)
	return err
}

func (m *FileSystem) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	start := time.Now()
	err := m.wrapped.RmDir(ctx, op)
	m.record("RmDir", start, err)
	return err
}

func (m *FileSystem) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	start := time.Now()
	err := m.wrapped.Unlink(ctx, op)
	m.record("Unlink", start, err)
	return err
}

func (m *FileSystem) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	start := time.Now()
	err := m.wrapped.OpenDir(ctx, op)
	m.record("OpenDir", start, err)
	return err
}

func (m *FileSystem) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	start := time.Now()
	err := m.wrapped.ReadDir(ctx, op)
	m.record("ReadDir", start, err)
	return err
}

func (m *FileSystem) ReadDirPlus(ctx context.Context, op *fuseops.ReadDirPlusOp) error {
	start := time.Now()
	err := m.wrapped.ReadDirPlus(ctx, op)
	m.record("ReadDirPlus", start, err)
	return err
}

func (m *FileSystem) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	start := time.Now()
	err := m.wrapped.ReleaseDirHandle(ctx, op)
	m.record("ReleaseDirHandle", start, err)
	return err
}

func (m *FileSystem) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	start := time.Now()
	err := m.wrapped.OpenFile(ctx, op)
	m.record("OpenFile", start, err)
	return err
}

func (m *FileSystem) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	start := time.Now()
	err := m.wrapped.ReadFile(ctx, op)
	m.record("ReadFile", start, err)
	return err
}

func (m *FileSystem) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	start := time.Now()
	err := m.wrapped.WriteFile(ctx, op)
	m.record("WriteFile", start, err)
	return err
}

func (m *FileSystem) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) error {
	start := time.Now()
	err := m.wrapped.SyncFile(ctx, op)
	m.record("SyncFile", start, err)
	return err
}

func (m *FileSystem) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error {
	start := time.Now()
	err := m.wrapped.FlushFile(ctx, op)
	m.record("FlushFile", start, err)
	return err
}

func (m *FileSystem) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	start := time.Now()
	err := m.wrapped.ReleaseFileHandle(ctx, op)
	m.record("ReleaseFileHandle", start, err)
	return err
}

func (m *FileSystem) ReadSymlink(ctx context.Context, op *fuseops.ReadSymlinkOp) error {
	start := time.Now()
	err := m.wrapped.ReadSymlink(ctx, op)
	m.record("ReadSymlink", start, err)
	return err
}

func (m *FileSystem) RemoveXattr(ctx context.Context, op *fuseops.RemoveXattrOp) error {
	start := time.Now()
	err := m.wrapped.RemoveXattr(ctx, op)
	m.record("RemoveXattr", start, err)
	return err
}

func (m *FileSystem) GetXattr(ctx context.Context, op *fuseops.GetXattrOp) error {
	start := time.Now()
	err := m.wrapped.GetXattr(ctx, op)
	m.record("GetXattr", start, err)
	return err
}

func (m *FileSystem) ListXattr(ctx context.Context, op *fuseops.ListXattrOp) error {
	start := time.Now()
	err := m.wrapped.ListXattr(ctx, op)
	m.record("ListXattr", start, err)
	return err
}

func (m *FileSystem) SetXattr(ctx context.Context, op *fuseops.SetXattrOp) error {
	start := time.Now()
	err := m.wrapped.SetXattr(ctx, op)
	m.record("SetXattr", start, err)
	return err
}

func (m *FileSystem) Fallocate(ctx context.Context, op *fuseops.FallocateOp) error {
	start := time.Now()
	err := m.wrapped.Fallocate(ctx, op)
	m.record("Fallocate", start, err)
	return err
}

func (m *FileSystem) SyncFS(ctx context.Context, op *fuseops.SyncFSOp) error {
	start := time.Now()
	err := m.wrapped.SyncFS(ctx, op)
	m.record("SyncFS", start, err)
	return err
}

func (m *FileSystem) Destroy() {
	m.wrapped.Destroy()
}
