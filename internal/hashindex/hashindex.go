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

// Package hashindex tracks, per logical path, the SHA-256 content hash
// recorded at the time an agent last wrote that path, together with the
// name of the writing agent. This is the basis for the optimistic
// conflict check: before a write or rename commits, the
// current on-disk hash is compared against the stored hash to detect a
// concurrent modification by a different agent.
//
// Recomputing a hash is one full read of the file's content, so
// concurrent requests for the same path are collapsed with singleflight.
package hashindex

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Record is the stored hash state for one logical path.
type Record struct {
	Hash  string // hex-encoded SHA-256
	Agent string // agent that produced Hash
}

// Index maps logical paths to their last-recorded Record.
type Index struct {
	mu      sync.RWMutex
	records map[string]Record
}

// New returns an empty Index.
func New() *Index {
	return &Index{records: make(map[string]Record)}
}

// Hash computes the SHA-256 hash of the file at physical path, hex-encoded.
// Concurrent callers for the same physical path share one read.
func Hash(physical string) (string, error) {
	v, err, _ := sharedGroup.Do(physical, func() (any, error) {
		return hashFile(physical)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

var sharedGroup singleflight.Group

func hashFile(physical string) (string, error) {
	f, err := os.Open(physical)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Record stores hash as the recorded hash for logical path p, written by
// agent. Called after every successful write; a rename moves the existing
// record with Rename instead.
func (idx *Index) Record(p, hash, agent string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.records[p] = Record{Hash: hash, Agent: agent}
}

// Lookup returns the recorded Record for p, if any.
func (idx *Index) Lookup(p string) (Record, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	r, ok := idx.records[p]
	return r, ok
}

// Forget discards any recorded hash for p, used on unlink and on create so
// a newly created file at that logical path starts with a clean slate.
func (idx *Index) Forget(p string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.records, p)
}

// Rename moves any recorded hash from oldPath to newPath, preserving the
// last-writer attribution across the rename.
func (idx *Index) Rename(oldPath, newPath string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if r, ok := idx.records[oldPath]; ok {
		idx.records[newPath] = r
		delete(idx.records, oldPath)
	} else {
		delete(idx.records, newPath)
	}
}
