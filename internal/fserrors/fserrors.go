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

// Package fserrors defines the core's error taxonomy: a small set of
// tagged kinds, independent of any particular VFS binding, with a single
// place that knows how to turn a kind into a POSIX errno.
package fserrors

import (
	"errors"
	"fmt"
	"syscall"
)

// Kind tags an error with its failure class.
type Kind int

const (
	// KindIO is the zero value so a bare error wraps as an I/O error by
	// default rather than silently becoming "not found".
	KindIO Kind = iota
	KindNotFound
	KindBadHandle
	KindResourceBusy
	KindCrossDevice
	KindInvalidArgument
	KindNotSupported
	KindExists
	KindPermission
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindBadHandle:
		return "bad-handle"
	case KindResourceBusy:
		return "resource-busy"
	case KindCrossDevice:
		return "cross-device"
	case KindInvalidArgument:
		return "invalid-argument"
	case KindNotSupported:
		return "not-supported"
	case KindExists:
		return "exists"
	case KindPermission:
		return "permission-denied"
	default:
		return "io"
	}
}

// Errno is the POSIX errno each Kind maps to at the VFS boundary.
func (k Kind) Errno() syscall.Errno {
	switch k {
	case KindNotFound:
		return syscall.ENOENT
	case KindBadHandle:
		return syscall.EBADF
	case KindResourceBusy:
		return syscall.EBUSY
	case KindCrossDevice:
		return syscall.EXDEV
	case KindInvalidArgument:
		return syscall.EINVAL
	case KindNotSupported:
		return syscall.ENOTSUP
	case KindExists:
		return syscall.EEXIST
	case KindPermission:
		return syscall.EACCES
	default:
		return syscall.EIO
	}
}

// Error wraps an underlying cause with a taxonomy Kind.
type Error struct {
	Kind  Kind
	Op    string
	Path  string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Kind, e.cause)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a tagged error.
func New(kind Kind, op, path string, cause error) error {
	return &Error{Kind: kind, Op: op, Path: path, cause: cause}
}

// NotFound, BadHandle, Busy, CrossDevice and InvalidArgument are
// constructors for the common cases, used throughout fs and internal/*.
func NotFound(op, path string) error { return New(KindNotFound, op, path, nil) }
func BadHandle(op string) error      { return New(KindBadHandle, op, "", nil) }
func Busy(op, path string) error     { return New(KindResourceBusy, op, path, nil) }
func CrossDevice(op, path string) error {
	return New(KindCrossDevice, op, path, nil)
}
func InvalidArgument(op, path string) error {
	return New(KindInvalidArgument, op, path, nil)
}
func NotSupported(op string) error { return New(KindNotSupported, op, "", nil) }
func Exists(op, path string) error { return New(KindExists, op, path, nil) }
func Permission(op, path string) error {
	return New(KindPermission, op, path, nil)
}
func IO(op, path string, cause error) error {
	return New(KindIO, op, path, cause)
}

// KindOf extracts the Kind from err, defaulting to KindIO for unrecognized
// errors (e.g. a raw error surfaced from the OS on a read/write syscall).
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindIO
}

// ToErrno is the single conversion point consulted at the fuseops
// boundary. An I/O-kind error propagates the real errno buried in its
// cause (os.PathError and friends unwrap to a syscall.Errno), so e.g. an
// ENOTEMPTY from removing a populated directory reaches the kernel as
// ENOTEMPTY rather than a generic EIO; EIO is the fallback only when no
// underlying errno is present.
func ToErrno(err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		if fe.Kind == KindIO {
			var errno syscall.Errno
			if errors.As(fe.cause, &errno) {
				return errno
			}
		}
		return fe.Kind.Errno()
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return syscall.EIO
}
