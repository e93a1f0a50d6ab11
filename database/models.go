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

// ConsensusRound records one finalized voting round for a network
type ConsensusRound struct {
	ID          uint   `gorm:"primarykey"`
	Network     string `gorm:"uniqueIndex:idx_round_network"`
	RoundID     uint64 `gorm:"uniqueIndex:idx_round_network"`
	Slot        uint64
	MerkleRoot  []byte
	ContentHash []byte
	TieBreaker  bool
}

func (ConsensusRound) TableName() string {
	return "consensus_round"
}

// ValidatorIndex locates one validator's leaf bundle inside a stored
// snapshot
type ValidatorIndex struct {
	ID          uint   `gorm:"primarykey"`
	Network     string `gorm:"uniqueIndex:idx_validator_round"`
	RoundID     uint64 `gorm:"uniqueIndex:idx_validator_round"`
	Validator   []byte `gorm:"uniqueIndex:idx_validator_round;index"`
	BundleIndex int
	TotalStake  uint64
	StakeCount  int
}

func (ValidatorIndex) TableName() string {
	return "validator_index"
}

// StakeIndex maps a stake account to its owning validator within a round
type StakeIndex struct {
	ID           uint   `gorm:"primarykey"`
	Network      string `gorm:"uniqueIndex:idx_stake_round"`
	RoundID      uint64 `gorm:"uniqueIndex:idx_stake_round"`
	StakeAccount []byte `gorm:"uniqueIndex:idx_stake_round;index"`
	Validator    []byte
	ActiveStake  uint64
}

func (StakeIndex) TableName() string {
	return "stake_index"
}

// migrateModels is the set of models auto-migrated at open
var migrateModels = []any{
	&ConsensusRound{},
	&ValidatorIndex{},
	&StakeIndex{},
}
