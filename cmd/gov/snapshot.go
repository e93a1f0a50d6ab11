// Copyright 2025 Exo Tech
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

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/exo-tech-xyz/gov-v1/database"
	"github.com/exo-tech-xyz/gov-v1/internal/config"
	"github.com/exo-tech-xyz/gov-v1/snapshot"
)

func snapshotRun(
	cmd *cobra.Command,
	dumpPath string,
	cfg *config.Config,
	roundID uint64,
	outPath string,
) error {
	logger := commonRun()

	builder := snapshot.NewBuilder(snapshot.BuilderConfig{
		Logger:  logger,
		Workers: cfg.SnapshotWorkers,
	})
	snap, err := builder.Build(cmd.Context(), snapshot.NewFileSource(dumpPath))
	if err != nil {
		return fmt.Errorf("building snapshot: %w", err)
	}
	serialized, err := snap.Serialize()
	if err != nil {
		return fmt.Errorf("serializing snapshot: %w", err)
	}
	contentHash := snapshot.ContentHash(serialized)
	logger.Info(
		"snapshot built",
		"slot", snap.Slot,
		"validators", len(snap.Bundles),
		"merkle_root", snap.Root.String(),
		"content_hash", contentHash.String(),
	)

	store, err := database.NewStore(database.StoreConfig{
		Logger:  logger,
		DataDir: cfg.DataDir,
		Network: cfg.Network,
	})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()
	if err := store.PutSnapshot(roundID, snap); err != nil {
		return fmt.Errorf("persisting snapshot: %w", err)
	}

	if outPath != "" {
		file, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer file.Close()
		if err := snap.Write(file, cfg.Compress); err != nil {
			return fmt.Errorf("writing snapshot file: %w", err)
		}
	}

	fmt.Printf("merkle_root: %s\n", snap.Root)
	fmt.Printf("content_hash: %s\n", contentHash)
	return nil
}

func snapshotCommand() *cobra.Command {
	var roundID uint64
	var outPath string
	cmd := &cobra.Command{
		Use:   "snapshot <delegation-dump>",
		Short: "Build and persist a stake snapshot from a delegation dump",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				slog.Error("no config found in context")
				os.Exit(1)
			}
			if err := snapshotRun(cmd, args[0], cfg, roundID, outPath); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
		},
	}
	cmd.Flags().
		Uint64Var(&roundID, "round", 1, "voting round id to store the snapshot under")
	cmd.Flags().
		StringVar(&outPath, "out", "", "also write the serialized snapshot to this path")
	return cmd
}
