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

	"github.com/jacobsa/fuse/fuseutil"
	"golang.org/x/sys/unix"
)

// deadline returns the instant at which attributes/entries handed to the
// kernel just now should be considered stale.
func deadline() time.Time {
	return time.Now().Add(attrExpiration)
}

// timesOf stats path for its current access and modification times, used
// by SetInodeAttributes when only one of Atime/Mtime is supplied and the
// other must be preserved.
func timesOf(path string) (atime, mtime time.Time) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		now := time.Now()
		return now, now
	}
	return time.Unix(st.Atim.Sec, st.Atim.Nsec), time.Unix(st.Mtim.Sec, st.Mtim.Nsec)
}

// direntType maps an os.FileMode to the wire DirentType the kernel expects
// in a readdir response.
func direntType(mode os.FileMode) fuseutil.DirentType {
	switch {
	case mode.IsDir():
		return fuseutil.DT_Directory
	case mode&os.ModeSymlink != 0:
		return fuseutil.DT_Link
	default:
		return fuseutil.DT_File
	}
}
