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

package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/exo-tech-xyz/gov-v1/merkle"
	"github.com/exo-tech-xyz/gov-v1/snapshot"
)

// ValidatorProof is the single-hop inclusion proof of a validator's meta
// leaf against the snapshot root
type ValidatorProof struct {
	RoundID  uint64
	Root     merkle.Hash
	MetaLeaf snapshot.MetaLeaf
	Proof    []merkle.Hash
}

// StakeProof is the two-hop inclusion proof of a stake leaf: the stake
// hop against the owning validator's stake root, plus the validator's
// meta hop against the snapshot root
type StakeProof struct {
	RoundID    uint64
	Root       merkle.Hash
	StakeLeaf  snapshot.StakeLeaf
	StakeProof []merkle.Hash
	MetaLeaf   snapshot.MetaLeaf
	MetaProof  []merkle.Hash
}

// ValidatorSummary is one row of the per-round validator listing
type ValidatorSummary struct {
	Validator  snapshot.Pubkey
	TotalStake uint64
	StakeCount int
}

// resolveRound maps the caller's round selector to a concrete round id:
// zero selects the latest finalized round
func (s *Store) resolveRound(roundID uint64) (uint64, error) {
	if roundID != 0 {
		return roundID, nil
	}
	return s.LatestFinalizedRound()
}

// GetValidatorProof returns the meta leaf and inclusion proof for a
// validator. A zero roundID selects the latest finalized round.
func (s *Store) GetValidatorProof(
	roundID uint64,
	validator snapshot.Pubkey,
) (*ValidatorProof, error) {
	roundID, err := s.resolveRound(roundID)
	if err != nil {
		return nil, err
	}
	snap, err := s.GetSnapshot(roundID)
	if err != nil {
		return nil, err
	}
	bundle := snap.Bundle(validator)
	if bundle == nil {
		return nil, ErrValidatorNotFound
	}
	return &ValidatorProof{
		RoundID:  roundID,
		Root:     snap.Root,
		MetaLeaf: bundle.MetaLeaf,
		Proof:    bundle.Proof,
	}, nil
}

// GetStakeProof returns the stake leaf, its proof against the owning
// validator's stake tree, and the validator's meta hop. A zero roundID
// selects the latest finalized round.
func (s *Store) GetStakeProof(
	roundID uint64,
	stakeAccount snapshot.Pubkey,
) (*StakeProof, error) {
	roundID, err := s.resolveRound(roundID)
	if err != nil {
		return nil, err
	}
	var row StakeIndex
	result := s.meta.
		Where(
			"network = ? AND round_id = ? AND stake_account = ?",
			s.config.Network, roundID, stakeAccount[:],
		).
		First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrStakeNotFound
		}
		return nil, result.Error
	}
	snap, err := s.GetSnapshot(roundID)
	if err != nil {
		return nil, err
	}
	bundle := snap.Bundle(snapshot.PubkeyFromBytes(row.Validator))
	if bundle == nil {
		return nil, ErrValidatorNotFound
	}
	leafIndex := -1
	leafContents := make([][]byte, len(bundle.StakeLeaves))
	for i := range bundle.StakeLeaves {
		leafContents[i] = bundle.StakeLeaves[i].Content()
		if bundle.StakeLeaves[i].StakeAccount == stakeAccount {
			leafIndex = i
		}
	}
	if leafIndex < 0 {
		return nil, ErrStakeNotFound
	}
	stakeTree, err := merkle.NewTree(leafContents)
	if err != nil {
		return nil, fmt.Errorf("rebuild stake tree: %w", err)
	}
	stakeProof, err := stakeTree.Proof(leafIndex)
	if err != nil {
		return nil, err
	}
	return &StakeProof{
		RoundID:    roundID,
		Root:       snap.Root,
		StakeLeaf:  bundle.StakeLeaves[leafIndex],
		StakeProof: stakeProof,
		MetaLeaf:   bundle.MetaLeaf,
		MetaProof:  bundle.Proof,
	}, nil
}

// GetValidatorSummaries lists the validators committed in a round, ordered
// by total stake descending. A zero roundID selects the latest finalized
// round.
func (s *Store) GetValidatorSummaries(
	roundID uint64,
) ([]ValidatorSummary, error) {
	roundID, err := s.resolveRound(roundID)
	if err != nil {
		return nil, err
	}
	var rows []ValidatorIndex
	result := s.meta.
		Where("network = ? AND round_id = ?", s.config.Network, roundID).
		Order("total_stake desc").
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	ret := make([]ValidatorSummary, len(rows))
	for i, row := range rows {
		ret[i] = ValidatorSummary{
			Validator:  snapshot.PubkeyFromBytes(row.Validator),
			TotalStake: row.TotalStake,
			StakeCount: row.StakeCount,
		}
	}
	return ret, nil
}
