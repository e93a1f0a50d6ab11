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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/exo-tech-xyz/gov-v1/ballot"
	"github.com/exo-tech-xyz/gov-v1/snapshot"
)

var (
	ErrRoundNotFound     = errors.New("round not found")
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrValidatorNotFound = errors.New("validator not in snapshot")
	ErrStakeNotFound     = errors.New("stake account not in snapshot")
)

type StoreConfig struct {
	Logger *slog.Logger
	// DataDir is where the blob and metadata stores live. Empty selects
	// in-memory stores, useful for testing.
	DataDir string
	// Network scopes every read and write
	Network string
}

// Store is the operator-local persistence for snapshots and finalized
// rounds: serialized snapshots in a Badger blob store, round results and
// leaf indexes in a SQLite metadata store. It backs the proof query
// surface.
type Store struct {
	config StoreConfig
	blob   *badger.DB
	meta   *gorm.DB
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg.Logger = cfg.Logger.With("component", "database")

	var blobOpts badger.Options
	var metaDb *gorm.DB
	var err error
	if cfg.DataDir == "" {
		blobOpts = badger.DefaultOptions("").
			WithInMemory(true).
			WithLogger(nil)
		// cache=shared lets the connection pool share one database, and
		// the unique name keeps it private to this Store
		metaDb, err = gorm.Open(
			sqlite.Open(
				fmt.Sprintf(
					"file:%s?mode=memory&cache=shared",
					uuid.NewString(),
				),
			),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
	} else {
		if _, statErr := os.Stat(cfg.DataDir); statErr != nil {
			if !errors.Is(statErr, fs.ErrNotExist) {
				return nil, fmt.Errorf("read data dir: %w", statErr)
			}
			if mkdirErr := os.MkdirAll(cfg.DataDir, fs.ModePerm); mkdirErr != nil {
				return nil, fmt.Errorf("create data dir: %w", mkdirErr)
			}
		}
		blobOpts = badger.DefaultOptions(
			filepath.Join(cfg.DataDir, "blob"),
		).WithLogger(nil)
		metaConnOpts := "_pragma=journal_mode(WAL)&_pragma=sync(OFF)"
		metaDb, err = gorm.Open(
			sqlite.Open(
				fmt.Sprintf(
					"file:%s?%s",
					filepath.Join(cfg.DataDir, "metadata.sqlite"),
					metaConnOpts,
				),
			),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
	}
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	for _, model := range migrateModels {
		if err := metaDb.AutoMigrate(model); err != nil {
			return nil, fmt.Errorf("migrate %T: %w", model, err)
		}
	}
	blobDb, err := badger.Open(blobOpts)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return &Store{
		config: cfg,
		blob:   blobDb,
		meta:   metaDb,
	}, nil
}

// Close cleans up the store connections
func (s *Store) Close() error {
	var err error
	// Close metadata
	if sqlDB, dbErr := s.meta.DB(); dbErr != nil {
		err = errors.Join(err, dbErr)
	} else {
		err = errors.Join(err, sqlDB.Close())
	}
	// Close blob
	err = errors.Join(err, s.blob.Close())
	return err
}

func (s *Store) snapshotKey(roundID uint64) []byte {
	key := []byte("snapshot/" + s.config.Network + "/")
	return binary.BigEndian.AppendUint64(key, roundID)
}

// PutSnapshot persists a snapshot under a round id: the serialized form
// in the blob store, per-validator and per-stake-account indexes in the
// metadata store. The index rows commit first and the blob last, so a
// metadata failure rolls back without leaving an orphaned blob.
func (s *Store) PutSnapshot(roundID uint64, snap *snapshot.Snapshot) error {
	data, err := snap.Serialize()
	if err != nil {
		return err
	}
	err = s.meta.Transaction(func(txn *gorm.DB) error {
		for i := range snap.Bundles {
			bundle := &snap.Bundles[i]
			validator := bundle.MetaLeaf.Validator
			result := txn.Create(&ValidatorIndex{
				Network:     s.config.Network,
				RoundID:     roundID,
				Validator:   validator[:],
				BundleIndex: i,
				TotalStake:  bundle.MetaLeaf.TotalStake,
				StakeCount:  len(bundle.StakeLeaves),
			})
			if result.Error != nil {
				return result.Error
			}
			for j := range bundle.StakeLeaves {
				leaf := &bundle.StakeLeaves[j]
				result := txn.Create(&StakeIndex{
					Network:      s.config.Network,
					RoundID:      roundID,
					StakeAccount: leaf.StakeAccount[:],
					Validator:    validator[:],
					ActiveStake:  leaf.ActiveStake,
				})
				if result.Error != nil {
					return result.Error
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("index snapshot: %w", err)
	}
	err = s.blob.Update(func(txn *badger.Txn) error {
		return txn.Set(s.snapshotKey(roundID), data)
	})
	if err != nil {
		return fmt.Errorf("store snapshot blob: %w", err)
	}
	return nil
}

// GetSnapshot loads a stored snapshot by round id
func (s *Store) GetSnapshot(roundID uint64) (*snapshot.Snapshot, error) {
	var data []byte
	err := s.blob.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.snapshotKey(roundID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	return snapshot.Deserialize(data)
}

// PutConsensusResult records a finalized round
func (s *Store) PutConsensusResult(
	result *ballot.ConsensusResult,
	slot uint64,
	tieBreaker bool,
) error {
	winner := result.Ballot()
	row := &ConsensusRound{
		Network:     s.config.Network,
		RoundID:     result.RoundID(),
		Slot:        slot,
		MerkleRoot:  winner.MerkleRoot[:],
		ContentHash: winner.ContentHash[:],
		TieBreaker:  tieBreaker,
	}
	if err := s.meta.Create(row).Error; err != nil {
		return fmt.Errorf("store consensus result: %w", err)
	}
	return nil
}

// LatestFinalizedRound returns the highest finalized round id for the
// store's network
func (s *Store) LatestFinalizedRound() (uint64, error) {
	var row ConsensusRound
	result := s.meta.
		Where("network = ?", s.config.Network).
		Order("round_id desc").
		First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, ErrRoundNotFound
		}
		return 0, result.Error
	}
	return row.RoundID, nil
}

// GetConsensusRound returns the stored record of a finalized round
func (s *Store) GetConsensusRound(roundID uint64) (*ConsensusRound, error) {
	var row ConsensusRound
	result := s.meta.
		Where("network = ? AND round_id = ?", s.config.Network, roundID).
		First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, result.Error
	}
	return &row, nil
}
