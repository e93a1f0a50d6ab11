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

package ballot

import (
	"github.com/exo-tech-xyz/gov-v1/merkle"
	"github.com/exo-tech-xyz/gov-v1/snapshot"
)

// Pubkey identifies an operator or authority
type Pubkey = snapshot.Pubkey

// Ballot is the value operators vote on: the root of a stake snapshot's
// global Merkle tree plus the content hash of its serialized form. The
// content hash is an opaque audit value outside both trees. A ballot with
// a zero merkle root is invalid and cannot be cast.
type Ballot struct {
	MerkleRoot  merkle.Hash
	ContentHash merkle.Hash
}

// Valid returns true if the ballot can be cast
func (b Ballot) Valid() bool {
	return !b.MerkleRoot.IsZero()
}

// ConsensusResult is the write-once record of a finalized round. It is
// produced only by BallotBox.Finalize.
type ConsensusResult struct {
	roundID uint64
	ballot  Ballot
}

// RoundID returns the id of the finalized round
func (r *ConsensusResult) RoundID() uint64 {
	return r.roundID
}

// Ballot returns the winning ballot of the finalized round
func (r *ConsensusResult) Ballot() Ballot {
	return r.ballot
}
