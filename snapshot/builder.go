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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/exo-tech-xyz/gov-v1/merkle"
)

var ErrNoDelegations = errors.New("no active delegations")

// Delegation is one raw per-account delegation record as extracted from
// the ledger
type Delegation struct {
	Validator    Pubkey
	StakeAccount Pubkey
	Staker       Pubkey
	Withdrawer   Pubkey
	ActiveStake  uint64
}

// DelegationSet is the complete input to one snapshot build. WalletOverrides
// maps a pooled-stake withdraw authority to the pool operator's wallet.
// ValidatorWithdrawers maps a validator key to its own withdraw authority;
// validators missing from the map get a zero delegate wallet.
type DelegationSet struct {
	Slot                 uint64
	Delegations          []Delegation
	WalletOverrides      map[Pubkey]Pubkey
	ValidatorWithdrawers map[Pubkey]Pubkey
}

// DelegationSource provides the delegation records for a snapshot build.
// Implementations must return the full set or an error, never a partial
// set.
type DelegationSource interface {
	DelegationSet(ctx context.Context) (*DelegationSet, error)
}

type BuilderConfig struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// Workers bounds the per-validator fan-out. Defaults to GOMAXPROCS.
	Workers int
}

type builderMetrics struct {
	builds        prometheus.Counter
	validators    prometheus.Gauge
	stakeAccounts prometheus.Gauge
	buildSeconds  prometheus.Histogram
}

// Builder converts raw delegation records into a two-level Merkle snapshot.
// Builds are deterministic: the same delegation set produces byte-identical
// roots and proofs regardless of input order or worker scheduling.
type Builder struct {
	config  BuilderConfig
	metrics *builderMetrics
}

func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg.Logger = cfg.Logger.With("component", "snapshot")
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	b := &Builder{
		config: cfg,
	}
	if cfg.PromRegistry != nil {
		b.initMetrics()
	}
	return b
}

func (b *Builder) initMetrics() {
	promautoFactory := promauto.With(b.config.PromRegistry)
	b.metrics = &builderMetrics{}
	b.metrics.builds = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "gov_snapshot_builds_total",
		Help: "number of completed snapshot builds",
	})
	b.metrics.validators = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "gov_snapshot_validators",
		Help: "number of validators in the last snapshot",
	})
	b.metrics.stakeAccounts = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "gov_snapshot_stake_accounts",
		Help: "number of stake accounts in the last snapshot",
	})
	b.metrics.buildSeconds = promautoFactory.NewHistogram(
		prometheus.HistogramOpts{
			Name: "gov_snapshot_build_seconds",
			Help: "snapshot build duration in seconds",
		},
	)
}

// Build reads the full delegation set from the source and builds a
// snapshot from it. Any source error aborts the build; a partial snapshot
// is never produced.
func (b *Builder) Build(
	ctx context.Context,
	source DelegationSource,
) (*Snapshot, error) {
	set, err := source.DelegationSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("read delegation set: %w", err)
	}
	return b.BuildFromSet(ctx, set)
}

// BuildFromSet builds a snapshot from an already-loaded delegation set
func (b *Builder) BuildFromSet(
	ctx context.Context,
	set *DelegationSet,
) (*Snapshot, error) {
	start := time.Now()

	// Filter to active delegations and group by validator
	grouped := make(map[Pubkey][]Delegation)
	stakeAccounts := 0
	for _, delegation := range set.Delegations {
		if delegation.ActiveStake == 0 {
			continue
		}
		grouped[delegation.Validator] = append(
			grouped[delegation.Validator],
			delegation,
		)
		stakeAccounts++
	}
	if len(grouped) == 0 {
		return nil, ErrNoDelegations
	}

	// Stable validator order, independent of map iteration and worker
	// scheduling
	validators := make([]Pubkey, 0, len(grouped))
	for validator := range grouped {
		validators = append(validators, validator)
	}
	sort.Slice(validators, func(i, j int) bool {
		return bytes.Compare(validators[i][:], validators[j][:]) < 0
	})

	// Per-validator sub-trees fan out across a bounded worker pool. Each
	// worker writes only its own slot, so results land in validator order
	// no matter which worker finishes first.
	bundles := make([]LeafBundle, len(validators))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(b.config.Workers)
	for i, validator := range validators {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			bundle, err := b.buildBundle(validator, grouped[validator], set)
			if err != nil {
				return fmt.Errorf("validator %s: %w", validator, err)
			}
			bundles[i] = bundle
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	// Global tree over the meta leaf contents
	metaContents := make([][]byte, len(bundles))
	for i := range bundles {
		metaContents[i] = bundles[i].MetaLeaf.Content()
	}
	metaTree, err := merkle.NewTree(metaContents)
	if err != nil {
		return nil, err
	}
	for i := range bundles {
		proof, err := metaTree.Proof(i)
		if err != nil {
			return nil, err
		}
		bundles[i].Proof = proof
	}

	snapshot := &Snapshot{
		Root:    metaTree.Root(),
		Bundles: bundles,
		Slot:    set.Slot,
	}
	b.config.Logger.Info(
		"built snapshot",
		"slot", set.Slot,
		"root", snapshot.Root.String(),
		"validators", len(validators),
		"stake_accounts", stakeAccounts,
	)
	if b.metrics != nil {
		b.metrics.builds.Inc()
		b.metrics.validators.Set(float64(len(validators)))
		b.metrics.stakeAccounts.Set(float64(stakeAccounts))
		b.metrics.buildSeconds.Observe(time.Since(start).Seconds())
	}
	return snapshot, nil
}

// buildBundle builds one validator's stake leaves, sub-tree, and meta leaf
func (b *Builder) buildBundle(
	validator Pubkey,
	delegations []Delegation,
	set *DelegationSet,
) (LeafBundle, error) {
	stakeLeaves := make([]StakeLeaf, 0, len(delegations))
	var totalStake uint64
	for _, delegation := range delegations {
		// The withdraw authority is the delegate wallet unless it belongs
		// to a registered stake pool, in which case the pool operator's
		// wallet takes over
		wallet := delegation.Withdrawer
		if operator, ok := set.WalletOverrides[wallet]; ok {
			wallet = operator
		}
		stakeLeaves = append(stakeLeaves, StakeLeaf{
			DelegateWallet: wallet,
			StakeAccount:   delegation.StakeAccount,
			ActiveStake:    delegation.ActiveStake,
		})
		totalStake += delegation.ActiveStake
	}
	sort.Slice(stakeLeaves, func(i, j int) bool {
		return bytes.Compare(
			stakeLeaves[i].StakeAccount[:],
			stakeLeaves[j].StakeAccount[:],
		) < 0
	})

	stakeContents := make([][]byte, len(stakeLeaves))
	for i := range stakeLeaves {
		stakeContents[i] = stakeLeaves[i].Content()
	}
	stakeTree, err := merkle.NewTree(stakeContents)
	if err != nil {
		return LeafBundle{}, err
	}

	// A validator whose withdraw authority cannot be resolved gets a zero
	// delegate wallet rather than aborting the whole snapshot
	delegateWallet, ok := set.ValidatorWithdrawers[validator]
	if !ok {
		b.config.Logger.Warn(
			"missing validator withdraw authority",
			"validator", validator.String(),
		)
	}
	return LeafBundle{
		MetaLeaf: MetaLeaf{
			DelegateWallet: delegateWallet,
			Validator:      validator,
			StakeRoot:      stakeTree.Root(),
			TotalStake:     totalStake,
		},
		StakeLeaves: stakeLeaves,
	}, nil
}
