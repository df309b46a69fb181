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
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jacobsa/daemonize"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/google/agentfs/internal/config"
	"github.com/google/agentfs/internal/gc"
	"github.com/google/agentfs/internal/layout"
	"github.com/google/agentfs/internal/logger"
	"github.com/google/agentfs/metrics"

	fsys "github.com/google/agentfs/fs"
)

// mountCmd's -f/-d shorthands are provided by the persistent --foreground
// and --debug flags config.BindFlags registers on the root command.
var mountCmd = &cobra.Command{
	Use:   "mount <repo> <mount-point>",
	Short: "Mount a repository's merged view at a mount point",
	Args:  cobra.ExactArgs(2),
	RunE:  runMount,
}

// fsName is the FUSE filesystem name/subtype reported to the kernel.
const fsName = "agentfs"

// backgroundModeEnv marks the re-exec'd child of a backgrounded mount, so
// it serves the mount instead of daemonizing again and knows to signal
// the mount outcome back to the waiting parent.
const backgroundModeEnv = "AGENTFS_IN_BACKGROUND_MODE"

func runMount(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}
	cfg.RepoPath = args[0]
	cfg.MountPoint = args[1]
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return fmt.Errorf("mount: initializing logger: %w", err)
	}

	repoPath, err := filepath.Abs(cfg.RepoPath)
	if err != nil {
		return fmt.Errorf("mount: resolving repo path: %w", err)
	}
	mountPoint, err := filepath.Abs(cfg.MountPoint)
	if err != nil {
		return fmt.Errorf("mount: resolving mount point: %w", err)
	}

	repo, err := layout.Open(repoPath)
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	if !cfg.Foreground && os.Getenv(backgroundModeEnv) == "" {
		return daemonizeMount(cmd, args)
	}

	dispatcher, err := fsys.New(&fsys.ServerConfig{
		Repo:        repo,
		ActiveAgent: cfg.ActiveAgent,
		Logger:      logger.Logger(),
	})
	if err != nil {
		return fmt.Errorf("mount: constructing dispatcher: %w", err)
	}

	reg := prometheus.NewRegistry()
	wrapped := metrics.Wrap(dispatcher, reg)

	if cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		go func() {
			logger.Infof("mount: serving metrics on %s", cfg.Metrics.ListenAddr)
			if serveErr := http.ListenAndServe(cfg.Metrics.ListenAddr, mux); serveErr != nil && serveErr != http.ErrServerClosed {
				logger.Errorf("mount: metrics server: %v", serveErr)
			}
		}()
	}

	mountCfg := &fuse.MountConfig{
		FSName:     fsName,
		Subtype:    fsName,
		VolumeName: fsName,
		// Parallel lookups are safe: the dispatcher serialises its own
		// shared-state mutations internally, and ReadDir re-reads every
		// layer per call anyway.
		EnableParallelDirOps: true,
		// Lets the kernel fetch entries and their attributes in a single
		// ReadDirPlus round trip instead of a ReadDir plus per-name lookups.
		EnableReaddirplus: true,
	}
	if cfg.Debug {
		mountCfg.DebugLogger = log.New(os.Stderr, "fuse_debug: ", log.LstdFlags)
		mountCfg.ErrorLogger = log.New(os.Stderr, "fuse: ", log.LstdFlags)
	}

	server := fuseutil.NewFileSystemServer(wrapped)

	logger.Infof("mount: mounting %s at %s as agent %q", repo.Path, mountPoint, cfg.ActiveAgent)
	mfs, err := fuse.Mount(mountPoint, server, mountCfg)
	if err != nil {
		err = fmt.Errorf("mount: %w", err)
		signalMountOutcome(err)
		return err
	}
	signalMountOutcome(nil)

	gcCtx, cancelGC := context.WithCancel(context.Background())
	defer cancelGC()
	go gc.Sweep(gcCtx, repo.AgentDir(cfg.ActiveAgent), gc.StalenessThreshold)

	if err := mfs.Join(context.Background()); err != nil {
		return fmt.Errorf("mount: waiting for unmount: %w", err)
	}
	return nil
}

// daemonizeMount re-execs the current binary detached from the
// controlling terminal and waits for the child to report whether the
// mount actually succeeded, so "mounted in background" is only printed
// once the filesystem is serving. The child is marked via
// backgroundModeEnv and reports back through daemonize.SignalOutcome.
func daemonizeMount(cmd *cobra.Command, args []string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}

	childArgs := append([]string{"mount"}, args...)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if f.Name != "foreground" {
			childArgs = append(childArgs, "--"+f.Name+"="+f.Value.String())
		}
	})

	// The child gets a fresh environment; PATH is needed so fuse.Mount can
	// find fusermount, and AGENT_ID must survive into the daemon since the
	// active agent may have come from it.
	env := []string{
		fmt.Sprintf("PATH=%s", os.Getenv("PATH")),
		fmt.Sprintf("%s=true", backgroundModeEnv),
	}
	if home, err := os.UserHomeDir(); err == nil {
		env = append(env, fmt.Sprintf("HOME=%s", home))
	}
	if agent, ok := os.LookupEnv("AGENT_ID"); ok {
		env = append(env, fmt.Sprintf("AGENT_ID=%s", agent))
	}

	if err := daemonize.Run(exe, childArgs, env, os.Stdout); err != nil {
		return fmt.Errorf("mount: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "mounted in background")
	return nil
}

// signalMountOutcome tells a waiting daemonize parent how the mount went.
// A foreground mount has no parent listening, so the signal is skipped.
func signalMountOutcome(outcome error) {
	if os.Getenv(backgroundModeEnv) == "" {
		return
	}
	if err := daemonize.SignalOutcome(outcome); err != nil {
		logger.Errorf("mount: signaling outcome to parent: %v", err)
	}
}
