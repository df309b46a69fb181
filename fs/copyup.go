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
	"io"
	"os"
	"path/filepath"

	"github.com/google/agentfs/internal/fserrors"
	"github.com/google/agentfs/internal/resolver"
)

// copyUp ensures the active agent's layer has its own copy of the file at
// logical path p, materialising parent directories and copying content
// from src (the resolver's chosen physical path) if the active copy does
// not yet exist. It returns the active layer's physical path.
//
// The copy itself lands via a temporary name in the same directory,
// renamed into place atomically, so a cancelled or interrupted copy-up
// leaves no partial file.
func (fsys *Dispatcher) copyUp(p, src string) (string, error) {
	if err := fsys.repo.EnsureAgentDir(fsys.activeAgent); err != nil {
		return "", fserrors.IO("copyup", p, err)
	}

	dst := resolver.PhysicalIn(fsys.repo.AgentDir(fsys.activeAgent), p)

	if _, err := os.Lstat(dst); err == nil {
		return dst, nil
	} else if !os.IsNotExist(err) {
		return "", fserrors.IO("copyup", p, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fserrors.IO("copyup", p, err)
	}

	if err := copyFileAtomic(src, dst); err != nil {
		return "", fserrors.IO("copyup", p, err)
	}

	fsys.resolver.Invalidate(p)
	return dst, nil
}

// copyFileAtomic copies src to dst via a temp file in dst's directory
// followed by a rename, so a crash mid-copy never leaves dst half-written.
// A missing src (the copy-up target is a brand new file) is not an error:
// the temp file is created empty.
func copyFileAtomic(src, dst string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".copyup-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if in, err := os.Open(src); err == nil {
		_, copyErr := io.Copy(tmp, in)
		in.Close()
		if copyErr != nil {
			tmp.Close()
			return copyErr
		}
	} else if !os.IsNotExist(err) {
		tmp.Close()
		return err
	}

	if info, statErr := os.Lstat(src); statErr == nil {
		tmp.Chmod(info.Mode().Perm())
	}

	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, dst)
}
