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

// Package cmd implements the CLI: init, mount, unmount, agent add,
// status, conflicts, direnv. The core (internal/*, fs) has no dependency
// on this package. A root cobra.Command binds the config struct via
// viper; subcommands do the real work.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/google/agentfs/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "agentfs",
	Short: "A layered overlay filesystem for multi-agent repository editing",
	Long: `agentfs mounts a shared read-only base tree under a stack of
per-agent writable diff layers, presenting a single merged view at a mount
point. Each agent sees the merged view but mutates only its own layer;
conflicting edits to the same file are detected, not silently clobbered.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to an agentfs.yaml config file.")
	rootCmd.PersistentFlags().String("repo", ".", "Path to the agentfs repository (the directory containing base/, agents/, agents.json).")
	if err := viper.BindPFlag("repo-path", rootCmd.PersistentFlags().Lookup("repo")); err != nil {
		panic(err)
	}
	if err := config.BindFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(unmountCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(conflictsCmd)
	rootCmd.AddCommand(direnvCmd)
}

// Execute runs the root command, exiting non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig builds a config.Config from --config-file, bound flags and
// defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	return config.Load(cfgFile, viper.GetViper())
}

// repoPathFlag reads the --repo flag from cmd or any of its parents.
func repoPathFlag(cmd *cobra.Command) string {
	f := cmd.Flags().Lookup("repo")
	if f == nil {
		f = rootCmd.PersistentFlags().Lookup("repo")
	}
	return f.Value.String()
}
