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

package inode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootIsPinned(t *testing.T) {
	tbl := New()
	p, ok := tbl.Path(RootID)
	require.True(t, ok)
	assert.Equal(t, "/", p)

	id, ok := tbl.ID("/")
	require.True(t, ok)
	assert.Equal(t, RootID, id)
}

func TestLookUpAllocatesOnceAndIsStable(t *testing.T) {
	tbl := New()
	id1 := tbl.LookUp("/a")
	id2 := tbl.LookUp("/a")
	assert.Equal(t, id1, id2)
	assert.NotEqual(t, RootID, id1)

	id3 := tbl.LookUp("/b")
	assert.NotEqual(t, id1, id3)
}

func TestForgetRemovesAtZeroCount(t *testing.T) {
	tbl := New()
	id := tbl.LookUp("/a") // lookupCount == 1
	tbl.LookUp("/a")       // lookupCount == 2

	tbl.Forget(id, 1)
	_, ok := tbl.ID("/a")
	assert.True(t, ok, "one outstanding lookup should keep the inode alive")

	tbl.Forget(id, 1)
	_, ok = tbl.ID("/a")
	assert.False(t, ok)
}

func TestForgetNeverRemovesRoot(t *testing.T) {
	tbl := New()
	tbl.Forget(RootID, 1_000_000)
	_, ok := tbl.Path(RootID)
	assert.True(t, ok)
}

func TestForgetUnknownInodeIsNoop(t *testing.T) {
	tbl := New()
	tbl.Forget(99999, 1)
}

// TestRenamePreservesInode checks that a path move keeps its inode.
func TestRenamePreservesInode(t *testing.T) {
	tbl := New()
	id := tbl.LookUp("/p")

	tbl.Rename("/p", "/q")

	_, ok := tbl.ID("/p")
	assert.False(t, ok)

	newID, ok := tbl.ID("/q")
	require.True(t, ok)
	assert.Equal(t, id, newID)

	p, ok := tbl.Path(id)
	require.True(t, ok)
	assert.Equal(t, "/q", p)
}

func TestRenameOfUnknownPathIsNoop(t *testing.T) {
	tbl := New()
	tbl.Rename("/ghost", "/still-ghost")
	_, ok := tbl.ID("/still-ghost")
	assert.False(t, ok)
}

func TestRenameOntoExistingDestinationEvictsOldInode(t *testing.T) {
	tbl := New()
	srcID := tbl.LookUp("/src")
	dstID := tbl.LookUp("/dst")
	require.NotEqual(t, srcID, dstID)

	tbl.Rename("/src", "/dst")

	id, ok := tbl.ID("/dst")
	require.True(t, ok)
	assert.Equal(t, srcID, id)

	_, ok = tbl.Path(dstID)
	assert.False(t, ok, "the inode previously bound to the overwritten destination must be dropped")
}
