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

// Package conflict implements the conflict detector and log: a write or
// rename is flagged as conflicting when the file's current content hash
// no longer matches the hash recorded when the active agent last wrote
// it. Detected conflicts are appended to an
// ordered, in-memory log; the dispatcher fails the triggering operation
// with a resource-busy error and the agent is expected to re-read and
// retry — the core records divergence, it never merges.
package conflict

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/google/agentfs/clock"
	"github.com/google/agentfs/internal/hashindex"
)

// Record describes one detected conflict.
type Record struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	Agent        string    `json:"agent"`         // agent performing the write that triggered detection
	PriorAgent   string    `json:"prior_agent"`   // agent that produced the hash being overwritten
	ExpectedHash string    `json:"expected_hash"` // hash recorded by PriorAgent
	ActualHash   string    `json:"actual_hash"`   // hash observed on disk just before the write
	DetectedAt   time.Time `json:"detected_at"`
}

// Log is an in-memory, append-only conflict log.
type Log struct {
	clock clock.Clock

	mu      sync.Mutex
	records []Record
}

// NewLog returns an empty Log using c to timestamp records.
func NewLog(c clock.Clock) *Log {
	return &Log{clock: c}
}

// Check compares the hash currently on disk for a write to path against
// the index's recorded Record, if any. The rule is purely hash-based: if
// a prior record exists and its hash no longer matches actualHash, a
// conflict Record is appended and returned, regardless of which agent is
// named in the prior record (the active
// agent's own copy was mutated out from under it, whether by another
// agent sharing the repository or by an external process touching the
// active layer directly). Check does not itself recompute actualHash; the
// caller supplies it from the hash taken immediately before the write
// commits.
func (l *Log) Check(idx *hashindex.Index, path, writingAgent, actualHash string) *Record {
	prior, ok := idx.Lookup(path)
	if !ok || prior.Hash == "" || actualHash == "" || prior.Hash == actualHash {
		return nil
	}

	rec := Record{
		ID:           uuid.NewString(),
		Path:         path,
		Agent:        writingAgent,
		PriorAgent:   prior.Agent,
		ExpectedHash: prior.Hash,
		ActualHash:   actualHash,
		DetectedAt:   l.clock.Now(),
	}

	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()

	return &rec
}

// Snapshot returns a copy of all recorded conflicts, oldest first.
func (l *Log) Snapshot() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// WriteJSON persists the current snapshot to path as indented JSON, the
// conflicts.json format the CLI reads.
func (l *Log) WriteJSON(path string) error {
	data, err := json.MarshalIndent(l.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
