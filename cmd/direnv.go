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

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	// --agent overrides the global --active-agent for this command only,
	// read directly rather than through viper to avoid fighting over
	// which flag a shared key binds to.
	direnvCmd.Flags().String("agent", "", "Agent identity to emit (overrides --active-agent).")
}

// direnvCmd emits shell exports for direnv's .envrc (or plain `eval`) to
// pick up, so a shell opened in an agent's working copy automatically
// picks the right AGENT_ID for any agentfs mount command it runs.
var direnvCmd = &cobra.Command{
	Use:   "direnv",
	Short: "Print `export AGENT_ID=...` lines for direnv/.envrc consumption",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("direnv: %w", err)
		}
		agent := cfg.ActiveAgent
		if explicit, _ := cmd.Flags().GetString("agent"); explicit != "" {
			agent = explicit
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "export AGENT_ID=%s\n", agent)
		fmt.Fprintf(out, "export AGENTFS_REPO=%s\n", cfg.RepoPath)
		return nil
	},
}
