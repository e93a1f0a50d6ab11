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
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/exo-tech-xyz/gov-v1/database"
	"github.com/exo-tech-xyz/gov-v1/internal/config"
	"github.com/exo-tech-xyz/gov-v1/merkle"
	"github.com/exo-tech-xyz/gov-v1/snapshot"
)

var errVerifyFailed = errors.New("proof verification failed")

func parsePubkey(s string) (snapshot.Pubkey, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return snapshot.Pubkey{}, fmt.Errorf("invalid key %q: %w", s, err)
	}
	if len(data) != snapshot.PubkeySize {
		return snapshot.Pubkey{}, fmt.Errorf(
			"invalid key %q: expected %d bytes, got %d",
			s, snapshot.PubkeySize, len(data),
		)
	}
	return snapshot.PubkeyFromBytes(data), nil
}

func verifyRun(
	cfg *config.Config,
	roundID uint64,
	validatorHex, stakeHex string,
) error {
	logger := commonRun()

	store, err := database.NewStore(database.StoreConfig{
		Logger:  logger,
		DataDir: cfg.DataDir,
		Network: cfg.Network,
	})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	if stakeHex != "" {
		stakeAccount, err := parsePubkey(stakeHex)
		if err != nil {
			return err
		}
		proof, err := store.GetStakeProof(roundID, stakeAccount)
		if err != nil {
			return fmt.Errorf("loading stake proof: %w", err)
		}
		// stake hop against the validator's stake root, then meta hop
		// against the snapshot root
		if !merkle.Verify(
			proof.StakeLeaf.Content(),
			proof.StakeProof,
			proof.MetaLeaf.StakeRoot,
		) {
			return fmt.Errorf("%w: stake hop", errVerifyFailed)
		}
		if !merkle.Verify(
			proof.MetaLeaf.Content(),
			proof.MetaProof,
			proof.Root,
		) {
			return fmt.Errorf("%w: meta hop", errVerifyFailed)
		}
		fmt.Printf("round: %d\n", proof.RoundID)
		fmt.Printf("merkle_root: %s\n", proof.Root)
		fmt.Printf("validator: %s\n", proof.MetaLeaf.Validator)
		fmt.Printf("active_stake: %d\n", proof.StakeLeaf.ActiveStake)
		fmt.Println("verified: both hops")
		return nil
	}

	validator, err := parsePubkey(validatorHex)
	if err != nil {
		return err
	}
	proof, err := store.GetValidatorProof(roundID, validator)
	if err != nil {
		return fmt.Errorf("loading validator proof: %w", err)
	}
	if !merkle.Verify(proof.MetaLeaf.Content(), proof.Proof, proof.Root) {
		return fmt.Errorf("%w: meta hop", errVerifyFailed)
	}
	fmt.Printf("round: %d\n", proof.RoundID)
	fmt.Printf("merkle_root: %s\n", proof.Root)
	fmt.Printf("total_stake: %d\n", proof.MetaLeaf.TotalStake)
	fmt.Println("verified: meta hop")
	return nil
}

func verifyCommand() *cobra.Command {
	var roundID uint64
	var validatorHex string
	var stakeHex string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a stored inclusion proof against its snapshot root",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				slog.Error("no config found in context")
				os.Exit(1)
			}
			if validatorHex == "" && stakeHex == "" {
				slog.Error("one of --validator or --stake is required")
				os.Exit(1)
			}
			if err := verifyRun(cfg, roundID, validatorHex, stakeHex); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
		},
	}
	cmd.Flags().
		Uint64Var(&roundID, "round", 0, "voting round id, 0 selects the latest finalized round")
	cmd.Flags().
		StringVar(&validatorHex, "validator", "", "validator key (hex) to verify")
	cmd.Flags().
		StringVar(&stakeHex, "stake", "", "stake account key (hex) to verify")
	return cmd
}
