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
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/exo-tech-xyz/gov-v1/event"
)

// MaxWhitelistedOperators caps the operator whitelist
const MaxWhitelistedOperators = 64

type ConfigParams struct {
	Authority    Pubkey
	TieBreaker   Pubkey
	ThresholdBps uint16
	VoteDuration time.Duration
	Operators    []Pubkey
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	EventBus     *event.Bus
	// Clock is injectable for tests. Defaults to time.Now.
	Clock func() time.Time
}

type consensusMetrics struct {
	votesTotal      prometheus.Counter
	roundsCreated   prometheus.Counter
	roundsDecided   *prometheus.CounterVec
	roundsFinalized prometheus.Counter
}

// Config holds the operator whitelist, quorum threshold, tie-breaker
// authority, and vote duration governing new voting rounds. Mutations are
// serialized and require the config authority. Rounds freeze their own
// copies of the threshold and voter set at creation, so config changes
// never affect rounds already underway.
type Config struct {
	mu                sync.Mutex
	authority         Pubkey
	proposedAuthority *Pubkey
	operators         []Pubkey
	thresholdBps      uint16
	tieBreaker        Pubkey
	voteDuration      time.Duration
	nextRoundID       uint64

	logger  *slog.Logger
	bus     *event.Bus
	clock   func() time.Time
	metrics *consensusMetrics
}

func NewConfig(params ConfigParams) (*Config, error) {
	if params.ThresholdBps == 0 || params.ThresholdBps > 10000 {
		return nil, ErrInvalidThreshold
	}
	if params.VoteDuration <= 0 {
		return nil, ErrInvalidDuration
	}
	if len(params.Operators) > MaxWhitelistedOperators {
		return nil, ErrCapacity
	}
	if params.Logger == nil {
		params.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if params.Clock == nil {
		params.Clock = time.Now
	}
	c := &Config{
		authority:    params.Authority,
		operators:    slices.Clone(params.Operators),
		thresholdBps: params.ThresholdBps,
		tieBreaker:   params.TieBreaker,
		voteDuration: params.VoteDuration,
		// round ids start at 1 so a zero id can mean "latest" in queries
		nextRoundID: 1,
		logger:      params.Logger.With("component", "ballot"),
		bus:         params.EventBus,
		clock:       params.Clock,
	}
	if params.PromRegistry != nil {
		c.initMetrics(params.PromRegistry)
	}
	return c, nil
}

func (c *Config) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	c.metrics = &consensusMetrics{}
	c.metrics.votesTotal = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "gov_votes_total",
		Help: "number of votes cast across all rounds",
	})
	c.metrics.roundsCreated = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "gov_rounds_created_total",
			Help: "number of voting rounds created",
		},
	)
	c.metrics.roundsDecided = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gov_rounds_decided_total",
			Help: "number of voting rounds decided by method",
		},
		[]string{"method"},
	)
	c.metrics.roundsFinalized = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "gov_rounds_finalized_total",
			Help: "number of voting rounds finalized",
		},
	)
}

// Authority returns the current config authority
func (c *Config) Authority() Pubkey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authority
}

// TieBreaker returns the current tie-breaker authority
func (c *Config) TieBreaker() Pubkey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tieBreaker
}

// ThresholdBps returns the current quorum threshold in basis points
func (c *Config) ThresholdBps() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thresholdBps
}

// VoteDuration returns the per-round vote duration
func (c *Config) VoteDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voteDuration
}

// Operators returns a copy of the current whitelist
func (c *Config) Operators() []Pubkey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.operators)
}

// NextRoundID returns the id the next round will be assigned
func (c *Config) NextRoundID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextRoundID
}

// ConfigUpdate carries partial config updates; nil fields are unchanged
type ConfigUpdate struct {
	ProposedAuthority *Pubkey
	ThresholdBps      *uint16
	TieBreaker        *Pubkey
	VoteDuration      *time.Duration
}

// Update applies a partial config update. Only the current authority may
// call it. Rounds already created keep their frozen copies.
func (c *Config) Update(authority Pubkey, update ConfigUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if authority != c.authority {
		return ErrNotAuthority
	}
	if update.ThresholdBps != nil {
		if *update.ThresholdBps == 0 || *update.ThresholdBps > 10000 {
			return ErrInvalidThreshold
		}
	}
	if update.VoteDuration != nil && *update.VoteDuration <= 0 {
		return ErrInvalidDuration
	}
	if update.ProposedAuthority != nil {
		proposed := *update.ProposedAuthority
		c.proposedAuthority = &proposed
	}
	if update.ThresholdBps != nil {
		c.thresholdBps = *update.ThresholdBps
	}
	if update.TieBreaker != nil {
		c.tieBreaker = *update.TieBreaker
	}
	if update.VoteDuration != nil {
		c.voteDuration = *update.VoteDuration
	}
	return nil
}

// FinalizeProposedAuthority completes a two-phase authority transfer. Only
// the proposed authority may call it.
func (c *Config) FinalizeProposedAuthority(caller Pubkey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proposedAuthority == nil || *c.proposedAuthority != caller {
		return ErrNoProposedAuthority
	}
	c.authority = caller
	c.proposedAuthority = nil
	c.logger.Info("config authority transferred", "authority", caller.String())
	return nil
}

// UpdateWhitelist adds and removes operators in one call. A key present in
// both lists rejects the whole update. Removals apply before additions.
func (c *Config) UpdateWhitelist(authority Pubkey, add, remove []Pubkey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if authority != c.authority {
		return ErrNotAuthority
	}
	for _, operator := range add {
		if slices.Contains(remove, operator) {
			return ErrOverlappingWhitelist
		}
	}
	updated := slices.Clone(c.operators)
	updated = slices.DeleteFunc(updated, func(operator Pubkey) bool {
		return slices.Contains(remove, operator)
	})
	for _, operator := range add {
		if slices.Contains(updated, operator) {
			continue
		}
		updated = append(updated, operator)
	}
	if len(updated) > MaxWhitelistedOperators {
		return ErrCapacity
	}
	c.operators = updated
	return nil
}

// NewRound creates the ballot box for the next round. Only a whitelisted
// operator may create one. The box freezes the current threshold, voter
// set, and tie-breaker authority; later config changes do not touch it.
func (c *Config) NewRound(operator Pubkey, slot uint64) (*BallotBox, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !slices.Contains(c.operators, operator) {
		return nil, ErrNotWhitelisted
	}
	now := c.clock()
	box := &BallotBox{
		roundID:      c.nextRoundID,
		createdSlot:  slot,
		thresholdBps: c.thresholdBps,
		operators:    slices.Clone(c.operators),
		tieBreaker:   c.tieBreaker,
		expiry:       now.Add(c.voteDuration),
		clock:        c.clock,
		logger:       c.logger.With("round", c.nextRoundID),
		bus:          c.bus,
		metrics:      c.metrics,
	}
	c.nextRoundID++
	box.logger.Info(
		"round created",
		"slot", slot,
		"expiry", box.expiry,
		"operators", len(box.operators),
		"threshold_bps", box.thresholdBps,
	)
	if c.metrics != nil {
		c.metrics.roundsCreated.Inc()
	}
	if c.bus != nil {
		c.bus.Publish(
			RoundCreatedEventType,
			event.New(RoundCreatedEventType, RoundCreatedEvent{
				RoundID: box.roundID,
				Slot:    slot,
				Expiry:  box.expiry,
			}),
		)
	}
	return box, nil
}
