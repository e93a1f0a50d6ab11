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

package snapshot

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/exo-tech-xyz/gov-v1/merkle"
)

// PubkeySize is the size of an account key in bytes
const PubkeySize = 32

// Pubkey is a 32-byte account key
type Pubkey [PubkeySize]byte

// IsZero returns true if the key is all zeros
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// String returns the hex encoding of the key
func (p Pubkey) String() string {
	return hex.EncodeToString(p[:])
}

// PubkeyFromBytes creates a Pubkey from a byte slice. Short input is
// zero-padded, long input is truncated.
func PubkeyFromBytes(data []byte) Pubkey {
	var ret Pubkey
	copy(ret[:], data)
	return ret
}

// StakeLeaf commits to one active stake delegation. DelegateWallet is the
// stake account's withdraw authority unless the withdraw authority belongs
// to a registered stake pool, in which case the pool operator's wallet is
// substituted.
type StakeLeaf struct {
	DelegateWallet Pubkey `cbor:"0,keyasint"`
	StakeAccount   Pubkey `cbor:"1,keyasint"`
	ActiveStake    uint64 `cbor:"2,keyasint"`
}

// Content returns the leaf content committed into a validator's stake tree
func (l *StakeLeaf) Content() []byte {
	hasher := sha256.New()
	hasher.Write(l.DelegateWallet[:])
	hasher.Write(l.StakeAccount[:])
	hasher.Write(binary.LittleEndian.AppendUint64(nil, l.ActiveStake))
	return hasher.Sum(nil)
}

// MetaLeaf commits to one validator: its delegate wallet, the root of its
// stake tree, and the total active stake delegated to it
type MetaLeaf struct {
	DelegateWallet Pubkey      `cbor:"0,keyasint"`
	Validator      Pubkey      `cbor:"1,keyasint"`
	StakeRoot      merkle.Hash `cbor:"2,keyasint"`
	TotalStake     uint64      `cbor:"3,keyasint"`
}

// Content returns the leaf content committed into the global tree
func (l *MetaLeaf) Content() []byte {
	hasher := sha256.New()
	hasher.Write(l.DelegateWallet[:])
	hasher.Write(l.Validator[:])
	hasher.Write(l.StakeRoot[:])
	hasher.Write(binary.LittleEndian.AppendUint64(nil, l.TotalStake))
	return hasher.Sum(nil)
}

// LeafBundle packages one validator's meta leaf, its stake leaves (sorted
// by stake account key), and the inclusion proof of the meta leaf against
// the snapshot root
type LeafBundle struct {
	MetaLeaf    MetaLeaf      `cbor:"0,keyasint"`
	StakeLeaves []StakeLeaf   `cbor:"1,keyasint"`
	Proof       []merkle.Hash `cbor:"2,keyasint"`
}

// Snapshot is the full two-level commitment over all active stake
// delegations at a given slot. It is immutable once built. Bundles are
// ordered by validator key ascending, matching the leaf order of the
// global tree.
type Snapshot struct {
	Root    merkle.Hash  `cbor:"0,keyasint"`
	Bundles []LeafBundle `cbor:"1,keyasint"`
	Slot    uint64       `cbor:"2,keyasint"`
}

// Bundle returns the bundle for the given validator key, or nil if the
// validator is not in the snapshot
func (s *Snapshot) Bundle(validator Pubkey) *LeafBundle {
	for i := range s.Bundles {
		if s.Bundles[i].MetaLeaf.Validator == validator {
			return &s.Bundles[i]
		}
	}
	return nil
}
