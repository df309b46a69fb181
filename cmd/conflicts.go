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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/google/agentfs/internal/conflict"
	"github.com/google/agentfs/internal/layout"
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Print the repository's conflicts.json, if present",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("conflicts: %w", err)
		}
		repo, err := layout.Open(cfg.RepoPath)
		if err != nil {
			return fmt.Errorf("conflicts: %w", err)
		}

		data, err := os.ReadFile(repo.ConflictLogPath())
		out := cmd.OutOrStdout()
		if os.IsNotExist(err) {
			fmt.Fprintln(out, "no conflicts.json yet (no mount has persisted one)")
			return nil
		}
		if err != nil {
			return fmt.Errorf("conflicts: reading %s: %w", repo.ConflictLogPath(), err)
		}

		var records []conflict.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("conflicts: parsing %s: %w", repo.ConflictLogPath(), err)
		}
		if len(records) == 0 {
			fmt.Fprintln(out, "no conflicts recorded")
			return nil
		}
		for _, r := range records {
			fmt.Fprintf(out, "%s  %-30s agent=%s prior_agent=%s expected=%s actual=%s\n",
				r.DetectedAt.Format("2006-01-02T15:04:05Z07:00"), r.Path, r.Agent, r.PriorAgent, r.ExpectedHash, r.ActualHash)
		}
		return nil
	},
}
