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

	"github.com/google/agentfs/internal/layout"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage the repository's agent layer manifest",
}

var agentAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a new writable agent layer in agents.json",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := layout.Open(repoPathFlag(cmd))
		if err != nil {
			return fmt.Errorf("agent add: %w", err)
		}
		if err := repo.AddAgent(args[0]); err != nil {
			return fmt.Errorf("agent add: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added agent %q\n", args[0])
		return nil
	},
}

func init() {
	agentCmd.AddCommand(agentAddCmd)
}
