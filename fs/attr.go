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
	"os"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"golang.org/x/sys/unix"

	"github.com/google/agentfs/internal/fserrors"
)

// attrExpiration is how long the kernel is told it may cache attributes and
// directory entries before re-querying. Short-lived, since another agent's
// process may mutate a lower layer at any time.
const attrExpiration = time.Second

// lstatAttr lstats physical and converts the result into fuseops
// attributes. It never follows a terminal symlink, matching the resolver's
// own use of lstat.
func lstatAttr(physical string) (fuseops.InodeAttributes, error) {
	var st unix.Stat_t
	if err := unix.Lstat(physical, &st); err != nil {
		if os.IsNotExist(err) {
			return fuseops.InodeAttributes{}, fserrors.NotFound("getattr", physical)
		}
		return fuseops.InodeAttributes{}, fserrors.IO("getattr", physical, err)
	}
	return attrFromStat(st), nil
}

func attrFromStat(st unix.Stat_t) fuseops.InodeAttributes {
	ctime := time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	return fuseops.InodeAttributes{
		Size:   uint64(st.Size),
		Nlink:  uint32(st.Nlink),
		Mode:   modeFromStat(st.Mode),
		Atime:  time.Unix(st.Atim.Sec, st.Atim.Nsec),
		Mtime:  time.Unix(st.Mtim.Sec, st.Mtim.Nsec),
		Ctime:  ctime,
		Crtime: ctime,
		Uid:    st.Uid,
		Gid:    st.Gid,
	}
}

// modeFromStat translates a raw POSIX mode_t into an os.FileMode, the form
// fuseops.InodeAttributes expects.
func modeFromStat(raw uint32) os.FileMode {
	perm := os.FileMode(raw & 0o777)

	switch raw & unix.S_IFMT {
	case unix.S_IFDIR:
		return perm | os.ModeDir
	case unix.S_IFLNK:
		return perm | os.ModeSymlink
	case unix.S_IFIFO:
		return perm | os.ModeNamedPipe
	case unix.S_IFSOCK:
		return perm | os.ModeSocket
	case unix.S_IFBLK:
		return perm | os.ModeDevice
	case unix.S_IFCHR:
		return perm | os.ModeDevice | os.ModeCharDevice
	default:
		return perm
	}
}
