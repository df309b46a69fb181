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

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the repository's agent stack and active agent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		repo, err := layout.Open(cfg.RepoPath)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "repo:          %s\n", repo.Path)
		fmt.Fprintf(out, "active agent:  %s\n", cfg.ActiveAgent)
		if len(repo.Agents) == 0 {
			fmt.Fprintln(out, "agent layers:  (none registered)")
		} else {
			fmt.Fprintln(out, "agent layers, bottom to top:")
			fmt.Fprintln(out, "  base")
			for _, a := range repo.Agents {
				fmt.Fprintf(out, "  %s\n", a)
			}
		}
		return nil
	},
}
