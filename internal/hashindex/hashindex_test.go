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

package hashindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashIsDeterministicAcrossPaths(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a")
	p2 := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(p1, []byte("same bytes"), 0o644))
	require.NoError(t, os.WriteFile(p2, []byte("same bytes"), 0o644))

	h1, err := Hash(p1)
	require.NoError(t, err)
	h2, err := Hash(p2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.NotEmpty(t, h1)
}

func TestHashDiffersOnDifferentContent(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a")
	p2 := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(p1, []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(p2, []byte("two"), 0o644))

	h1, err := Hash(p1)
	require.NoError(t, err)
	h2, err := Hash(p2)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestHashMissingFileErrors(t *testing.T) {
	_, err := Hash(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestIndexRecordLookupForgetRename(t *testing.T) {
	idx := New()

	_, ok := idx.Lookup("/p")
	assert.False(t, ok)

	idx.Record("/p", "deadbeef", "a1")
	rec, ok := idx.Lookup("/p")
	require.True(t, ok)
	assert.Equal(t, "deadbeef", rec.Hash)
	assert.Equal(t, "a1", rec.Agent)

	idx.Forget("/p")
	_, ok = idx.Lookup("/p")
	assert.False(t, ok)

	idx.Record("/p", "hash1", "a1")
	idx.Rename("/p", "/q")
	_, ok = idx.Lookup("/p")
	assert.False(t, ok)
	rec, ok = idx.Lookup("/q")
	require.True(t, ok)
	assert.Equal(t, "hash1", rec.Hash)
}

func TestIndexRenameOverwritesDestination(t *testing.T) {
	idx := New()
	idx.Record("/q", "old-hash", "a1")
	idx.Record("/p", "new-hash", "a2")

	idx.Rename("/p", "/q")

	rec, ok := idx.Lookup("/q")
	require.True(t, ok)
	assert.Equal(t, "new-hash", rec.Hash)
	assert.Equal(t, "a2", rec.Agent)
}

func TestIndexRenameOfUnknownPathClearsDestination(t *testing.T) {
	idx := New()
	idx.Record("/q", "old-hash", "a1")

	idx.Rename("/p", "/q")

	_, ok := idx.Lookup("/q")
	assert.False(t, ok)
}
