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

package fserrors

import (
	"errors"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToErrnoMapsEachKind(t *testing.T) {
	cases := []struct {
		err  error
		want syscall.Errno
	}{
		{NotFound("op", "/p"), syscall.ENOENT},
		{BadHandle("op"), syscall.EBADF},
		{Busy("op", "/p"), syscall.EBUSY},
		{CrossDevice("op", "/p"), syscall.EXDEV},
		{InvalidArgument("op", "/p"), syscall.EINVAL},
		{NotSupported("op"), syscall.ENOTSUP},
		{Exists("op", "/p"), syscall.EEXIST},
		{Permission("op", "/p"), syscall.EACCES},
		{IO("op", "/p", errors.New("boom")), syscall.EIO},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ToErrno(c.err))
	}
}

func TestToErrnoNilIsNil(t *testing.T) {
	assert.Nil(t, ToErrno(nil))
}

func TestToErrnoUnrecognizedErrorIsIO(t *testing.T) {
	assert.Equal(t, syscall.EIO, ToErrno(errors.New("raw")))
}

func TestToErrnoPropagatesUnderlyingErrno(t *testing.T) {
	cause := &os.PathError{Op: "remove", Path: "/d", Err: syscall.ENOTEMPTY}
	assert.Equal(t, syscall.ENOTEMPTY, ToErrno(IO("rmdir", "/d", cause)))

	assert.Equal(t, syscall.ENOSPC, ToErrno(IO("write", "/f", syscall.ENOSPC)))
}

func TestToErrnoIOWithoutErrnoCauseIsEIO(t *testing.T) {
	assert.Equal(t, syscall.EIO, ToErrno(IO("read", "/f", errors.New("torn"))))
	assert.Equal(t, syscall.EIO, ToErrno(IO("read", "/f", nil)))
}

func TestToErrnoBareErrnoPassesThrough(t *testing.T) {
	assert.Equal(t, syscall.ENOTEMPTY, ToErrno(syscall.ENOTEMPTY))
}

func TestKindOfDefaultsToIO(t *testing.T) {
	assert.Equal(t, KindIO, KindOf(errors.New("raw")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("op", "/p")))
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("underlying")
	err := IO("write", "/p", cause)
	assert.ErrorIs(t, err, cause)
}

func TestErrorStringIncludesOpAndPath(t *testing.T) {
	err := NotFound("lookup", "/missing")
	assert.Contains(t, err.Error(), "lookup")
	assert.Contains(t, err.Error(), "/missing")
	assert.Contains(t, err.Error(), "not-found")
}
