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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmptyViper() *viper.Viper {
	return viper.New()
}

func TestSeverityUnmarshalText(t *testing.T) {
	var s Severity
	require.NoError(t, s.UnmarshalText([]byte("debug")))
	assert.Equal(t, Debug, s)
	assert.Equal(t, 1, s.Rank())

	var bad Severity
	assert.Error(t, bad.UnmarshalText([]byte("LOUD")))
}

func TestDefaultUsesAgentIDEnv(t *testing.T) {
	os.Unsetenv("AGENT_ID")
	assert.Equal(t, "default", Default().ActiveAgent)

	t.Setenv("AGENT_ID", "a1")
	assert.Equal(t, "a1", Default().ActiveAgent)
}

func TestValidateRejectsUnknownSeverityAndFormat(t *testing.T) {
	cfg := Default()
	cfg.Logging.Severity = "LOUD"
	assert.Error(t, Validate(&cfg))

	cfg = Default()
	cfg.Logging.Format = "xml"
	assert.Error(t, Validate(&cfg))

	cfg = Default()
	assert.NoError(t, Validate(&cfg))
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentfs.yaml")
	contents := "active-agent: a1\nlogging:\n  format: json\n  severity: DEBUG\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	v := newEmptyViper()
	cfg, err := Load(path, v)
	require.NoError(t, err)
	assert.Equal(t, "a1", cfg.ActiveAgent)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, Debug, cfg.Logging.Severity)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	v := newEmptyViper()
	cfg, err := Load("", v)
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, Info, cfg.Logging.Severity)
}
