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

package proof

import (
	"errors"
	"time"

	"github.com/exo-tech-xyz/gov-v1/ballot"
	"github.com/exo-tech-xyz/gov-v1/merkle"
	"github.com/exo-tech-xyz/gov-v1/snapshot"
)

var (
	ErrInvalidProof       = errors.New("merkle proof does not reconstruct the expected root")
	ErrMalformedStakePair = errors.New("stake leaf and stake proof must be supplied together")
	ErrRecordExists       = errors.New("proof record already exists")
	ErrRecordNotFound     = errors.New("proof record not found")
	ErrCloseNotAllowed    = errors.New("only the payer may close before the reclaim deadline")
)

// Record binds one validator's meta leaf and inclusion proof to a
// finalized consensus result. Creation does not verify; Verify is a
// separate, repeatable operation so any third party can check the record
// at any time. The payer funds the record's storage allowance and may
// reclaim it by closing; after the reclaim deadline anyone may close and
// the allowance still returns to the payer.
type Record struct {
	Payer           snapshot.Pubkey
	Result          *ballot.ConsensusResult
	MetaLeaf        snapshot.MetaLeaf
	MetaProof       []merkle.Hash
	ReclaimDeadline time.Time
	Allowance       uint64
}

// Verify checks the record's meta leaf against the consensus result's
// winning root and, when a stake-level pair is supplied, the stake leaf
// against the meta leaf's stake sub-root: a two-hop proof that a stake
// delegation is in a validator's tree which is in the agreed snapshot.
//
// A nil stakeProof with a non-nil stakeLeaf (or vice versa) is a
// malformed input, not a proof failure. A single-delegation validator has
// an empty, non-nil stake proof.
func (r *Record) Verify(
	stakeLeaf *snapshot.StakeLeaf,
	stakeProof []merkle.Hash,
) error {
	if (stakeLeaf == nil) != (stakeProof == nil) {
		return ErrMalformedStakePair
	}
	root := r.Result.Ballot().MerkleRoot
	if !merkle.Verify(r.MetaLeaf.Content(), r.MetaProof, root) {
		return ErrInvalidProof
	}
	if stakeLeaf != nil {
		if !merkle.Verify(
			stakeLeaf.Content(),
			stakeProof,
			r.MetaLeaf.StakeRoot,
		) {
			return ErrInvalidProof
		}
	}
	return nil
}
