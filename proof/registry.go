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
	"crypto/sha256"
	"encoding/binary"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/exo-tech-xyz/gov-v1/ballot"
	"github.com/exo-tech-xyz/gov-v1/merkle"
	"github.com/exo-tech-xyz/gov-v1/snapshot"
)

// recordKeyLabel is the purpose label mixed into every record key
const recordKeyLabel = "MetaMerkleProof"

// RecordKey is the stable address of a proof record, derived from the
// purpose label, the consensus round, and the validator key. The same
// inputs always yield the same key, so a record can be located without an
// index.
type RecordKey [32]byte

func NewRecordKey(roundID uint64, validator snapshot.Pubkey) RecordKey {
	hasher := sha256.New()
	hasher.Write([]byte(recordKeyLabel))
	hasher.Write(binary.LittleEndian.AppendUint64(nil, roundID))
	hasher.Write(validator[:])
	var ret RecordKey
	copy(ret[:], hasher.Sum(nil))
	return ret
}

type RegistryConfig struct {
	Logger *slog.Logger
	// Allowance is the storage allowance a payer funds per record
	Allowance uint64
	// Clock is injectable for tests. Defaults to time.Now.
	Clock func() time.Time
}

// Registry holds published proof records keyed by their stable record
// key. One record per (round, validator).
type Registry struct {
	mu        sync.Mutex
	records   map[RecordKey]*Record
	allowance uint64
	clock     func() time.Time
	logger    *slog.Logger
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Registry{
		records:   make(map[RecordKey]*Record),
		allowance: cfg.Allowance,
		clock:     cfg.Clock,
		logger:    cfg.Logger.With("component", "proof"),
	}
}

// Create publishes a record binding a meta leaf and proof to a finalized
// consensus result. The record is stored unverified; use Record.Verify.
// The payer funds the record's storage allowance.
func (g *Registry) Create(
	payer snapshot.Pubkey,
	result *ballot.ConsensusResult,
	metaLeaf snapshot.MetaLeaf,
	metaProof []merkle.Hash,
	reclaimDeadline time.Time,
) (*Record, error) {
	key := NewRecordKey(result.RoundID(), metaLeaf.Validator)
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.records[key]; ok {
		return nil, ErrRecordExists
	}
	record := &Record{
		Payer:           payer,
		Result:          result,
		MetaLeaf:        metaLeaf,
		MetaProof:       metaProof,
		ReclaimDeadline: reclaimDeadline,
		Allowance:       g.allowance,
	}
	g.records[key] = record
	g.logger.Debug(
		"proof record created",
		"round", result.RoundID(),
		"validator", metaLeaf.Validator.String(),
	)
	return record, nil
}

// Get returns the record for a round and validator, or nil
func (g *Registry) Get(
	roundID uint64,
	validator snapshot.Pubkey,
) *Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.records[NewRecordKey(roundID, validator)]
}

// Close destroys a record and returns its storage allowance, credited to
// the record's payer. The payer may close at any time; any other caller
// only once the reclaim deadline has passed.
func (g *Registry) Close(
	caller snapshot.Pubkey,
	roundID uint64,
	validator snapshot.Pubkey,
) (payer snapshot.Pubkey, refund uint64, err error) {
	key := NewRecordKey(roundID, validator)
	g.mu.Lock()
	defer g.mu.Unlock()
	record, ok := g.records[key]
	if !ok {
		return snapshot.Pubkey{}, 0, ErrRecordNotFound
	}
	if caller != record.Payer &&
		g.clock().Before(record.ReclaimDeadline) {
		return snapshot.Pubkey{}, 0, ErrCloseNotAllowed
	}
	delete(g.records, key)
	g.logger.Debug(
		"proof record closed",
		"round", roundID,
		"validator", validator.String(),
	)
	return record.Payer, record.Allowance, nil
}
