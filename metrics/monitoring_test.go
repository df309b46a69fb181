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

package metrics

import (
	"context"
	"fmt"
	"net/http/httptest"
	"syscall"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacobsa/fuse/fuseops"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{fmt.Errorf("some random error"), errIO},
		{syscall.ENOTEMPTY, errDirNotEmpty},
		{syscall.EEXIST, errFileExists},
		{syscall.EINVAL, errInvalidArg},
		{syscall.EINTR, errInterrupt},
		{syscall.ENOSYS, errNotImplemented},
		{syscall.ENOSPC, errProcessMgmt},
		{syscall.E2BIG, errInvalidOp},
		{syscall.EHOSTDOWN, errNetwork},
		{syscall.ENODATA, errMisc},
		{syscall.ENODEV, errDevice},
		{syscall.EISDIR, errFileDir},
		{syscall.ENFILE, errTooManyFiles},
		{syscall.EPERM, errPerm},
		{nil, errNone},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, categorize(tc.err))
	}
}

type dummyFS struct{ statFSErr error }

func (d dummyFS) StatFS(context.Context, *fuseops.StatFSOp) error { return d.statFSErr }
func (d dummyFS) LookUpInode(context.Context, *fuseops.LookUpInodeOp) error {
	return nil
}
func (d dummyFS) GetInodeAttributes(context.Context, *fuseops.GetInodeAttributesOp) error {
	return nil
}
func (d dummyFS) SetInodeAttributes(context.Context, *fuseops.SetInodeAttributesOp) error {
	return nil
}
func (d dummyFS) ForgetInode(context.Context, *fuseops.ForgetInodeOp) error { return nil }
func (d dummyFS) BatchForget(context.Context, *fuseops.BatchForgetOp) error { return nil }
func (d dummyFS) MkDir(context.Context, *fuseops.MkDirOp) error             { return nil }
func (d dummyFS) MkNode(context.Context, *fuseops.MkNodeOp) error           { return nil }
func (d dummyFS) CreateFile(context.Context, *fuseops.CreateFileOp) error   { return nil }
func (d dummyFS) CreateLink(context.Context, *fuseops.CreateLinkOp) error   { return nil }
func (d dummyFS) CreateSymlink(context.Context, *fuseops.CreateSymlinkOp) error {
	return nil
}
func (d dummyFS) Rename(context.Context, *fuseops.RenameOp) error     { return nil }
func (d dummyFS) RmDir(context.Context, *fuseops.RmDirOp) error       { return nil }
func (d dummyFS) Unlink(context.Context, *fuseops.UnlinkOp) error     { return nil }
func (d dummyFS) OpenDir(context.Context, *fuseops.OpenDirOp) error   { return nil }
func (d dummyFS) ReadDir(context.Context, *fuseops.ReadDirOp) error   { return nil }
func (d dummyFS) ReadDirPlus(context.Context, *fuseops.ReadDirPlusOp) error {
	return nil
}
func (d dummyFS) ReleaseDirHandle(context.Context, *fuseops.ReleaseDirHandleOp) error {
	return nil
}
func (d dummyFS) OpenFile(context.Context, *fuseops.OpenFileOp) error   { return nil }
func (d dummyFS) ReadFile(context.Context, *fuseops.ReadFileOp) error   { return nil }
func (d dummyFS) WriteFile(context.Context, *fuseops.WriteFileOp) error { return nil }
func (d dummyFS) SyncFile(context.Context, *fuseops.SyncFileOp) error   { return nil }
func (d dummyFS) FlushFile(context.Context, *fuseops.FlushFileOp) error { return nil }
func (d dummyFS) ReleaseFileHandle(context.Context, *fuseops.ReleaseFileHandleOp) error {
	return nil
}
func (d dummyFS) ReadSymlink(context.Context, *fuseops.ReadSymlinkOp) error { return nil }
func (d dummyFS) RemoveXattr(context.Context, *fuseops.RemoveXattrOp) error { return nil }
func (d dummyFS) GetXattr(context.Context, *fuseops.GetXattrOp) error       { return nil }
func (d dummyFS) ListXattr(context.Context, *fuseops.ListXattrOp) error     { return nil }
func (d dummyFS) SetXattr(context.Context, *fuseops.SetXattrOp) error       { return nil }
func (d dummyFS) Fallocate(context.Context, *fuseops.FallocateOp) error     { return nil }
func (d dummyFS) SyncFS(context.Context, *fuseops.SyncFSOp) error           { return nil }
func (d dummyFS) Destroy()                                                  {}

func TestWrapRecordsCallsAndErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := Wrap(dummyFS{statFSErr: syscall.ENOENT}, reg)

	err := m.StatFS(context.Background(), &fuseops.StatFSOp{})
	require.Equal(t, syscall.ENOENT, err)

	count := testutil.ToFloat64(m.calls.WithLabelValues("StatFS", errIO))
	assert.Equal(t, 1.0, count)
}

func TestHandlerServesRegisteredSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := Wrap(dummyFS{}, reg)
	require.NoError(t, m.StatFS(context.Background(), &fuseops.StatFSOp{}))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "agentfs_fs_ops_total")
}

func TestWrapDelegatesDestroy(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := dummyFS{}
	m := Wrap(d, reg)
	m.Destroy() // Must not panic; dummyFS.Destroy is a no-op.
}
