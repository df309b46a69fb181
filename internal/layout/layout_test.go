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

package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitCreatesLayoutAndEmptyManifest(t *testing.T) {
	dir := t.TempDir()

	repo, err := Init(dir)
	require.NoError(t, err)

	for _, d := range []string{"base", "agents", "work"} {
		info, statErr := os.Stat(filepath.Join(dir, d))
		require.NoError(t, statErr)
		assert.True(t, info.IsDir())
	}
	assert.Empty(t, repo.Agents)

	_, err = os.Stat(filepath.Join(dir, "agents.json"))
	assert.NoError(t, err)
}

func TestInitIsIdempotentOverExistingManifest(t *testing.T) {
	dir := t.TempDir()

	repo, err := Init(dir)
	require.NoError(t, err)
	require.NoError(t, repo.AddAgent("a1"))

	repo2, err := Init(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, repo2.Agents)
}

func TestAddAgentAppendsAndDedupes(t *testing.T) {
	dir := t.TempDir()
	repo, err := Init(dir)
	require.NoError(t, err)

	require.NoError(t, repo.AddAgent("a1"))
	require.NoError(t, repo.AddAgent("a2"))
	require.NoError(t, repo.AddAgent("a1"))

	assert.Equal(t, []string{"a1", "a2"}, repo.Agents)

	info, err := os.Stat(repo.AgentDir("a2"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	reopened, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, reopened.Agents)
}

func TestOpenDedupesManifestOnLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	manifest := `{"agents": ["a1", "a2", "a1", ""]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agents.json"), []byte(manifest), 0o644))

	repo, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, repo.Agents)
}

func TestOpenMissingManifestYieldsNoAgents(t *testing.T) {
	dir := t.TempDir()
	repo, err := Open(dir)
	require.NoError(t, err)
	assert.Empty(t, repo.Agents)
}

func TestLayersTopDownOrdering(t *testing.T) {
	dir := t.TempDir()
	repo, err := Init(dir)
	require.NoError(t, err)
	require.NoError(t, repo.AddAgent("a1"))
	require.NoError(t, repo.AddAgent("a2"))

	layers := repo.LayersTopDown()
	require.Len(t, layers, 3)
	assert.Equal(t, "a2", layers[0].Name)
	assert.Equal(t, "a1", layers[1].Name)
	assert.Equal(t, "base", layers[2].Name)
}

func TestEnsureAgentDirCreatesLazily(t *testing.T) {
	dir := t.TempDir()
	repo, err := Init(dir)
	require.NoError(t, err)

	_, statErr := os.Stat(repo.AgentDir("ghost"))
	assert.True(t, os.IsNotExist(statErr))

	require.NoError(t, repo.EnsureAgentDir("ghost"))
	info, statErr := os.Stat(repo.AgentDir("ghost"))
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())
}
