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

// Package gc periodically sweeps orphaned copy-up temporary files — the
// ".copyup-*" names the copy-up path creates mid-copy and renames into
// place — that a crashed or killed copy-up left behind: a
// walk-then-filter-then-delete pass over a fixed staleness threshold,
// run on a ticker against the active agent's layer.
package gc

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/agentfs/internal/logger"
)

// TmpPrefix is the basename prefix fs.copyFileAtomic uses for its
// in-progress copy-up target (see fs/copyup.go's os.CreateTemp(dir,
// ".copyup-*")).
const TmpPrefix = ".copyup-"

// StalenessThreshold is how old an orphaned temp file must be before this
// sweep considers it safe to remove — long enough that it can't still be a
// copy-up in flight.
const StalenessThreshold = 30 * time.Minute

// SweepOnce walks root looking for stale orphaned copy-up temp files and
// removes them, returning the count removed. now is threaded through
// explicitly so tests can drive staleness deterministically rather than
// sleeping.
func SweepOnce(root string, now time.Time) (removed uint64, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// A layer directory may legitimately vanish mid-walk (e.g. an
			// unrelated rmdir); skip rather than aborting the whole sweep.
			return nil
		}
		if d.IsDir() || !strings.HasPrefix(d.Name(), TmpPrefix) {
			return nil
		}
		info, statErr := d.Info()
		if statErr != nil {
			return nil
		}
		if now.Sub(info.ModTime()) < StalenessThreshold {
			return nil
		}
		if rmErr := os.Remove(path); rmErr != nil {
			logger.Warnf("gc: failed to remove stale copy-up temp %s: %v", path, rmErr)
			return nil
		}
		removed++
		return nil
	})
	return removed, err
}

// Sweep runs SweepOnce on a fixed period until ctx is cancelled, logging
// a summary after each pass.
func Sweep(ctx context.Context, root string, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			removed, err := SweepOnce(root, start)
			if err != nil {
				logger.Warnf("gc: sweep of %s failed after removing %d temp files in %v: %v", root, removed, time.Since(start), err)
				continue
			}
			if removed > 0 {
				logger.Infof("gc: removed %d stale copy-up temp files from %s in %v", removed, root, time.Since(start))
			}
		}
	}
}
