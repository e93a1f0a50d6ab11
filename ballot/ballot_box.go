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
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/exo-tech-xyz/gov-v1/event"
)

// Collection capacities. Bounded collections are never resized; exceeding
// a capacity is a reported error, never silent truncation.
const (
	MaxOperatorVotes = 64
	MaxBallotTallies = 64
)

// OperatorVote records one operator's live vote. At most one per operator
// per round.
type OperatorVote struct {
	Operator   Pubkey
	SlotVoted  uint64
	TallyIndex int
}

// BallotTally counts votes for one distinct ballot value. Tallies are
// ordered by first-seen index and are never compacted, so TallyIndex
// stays valid for SetTieBreaker even after votes are removed.
type BallotTally struct {
	Index  int
	Ballot Ballot
	Votes  int
}

// BallotBox is one voting round. It is Open until consensus is reached by
// threshold or tie-breaker (decidedSlot != 0), after which the winning
// ballot is immutable; Finalize then consumes it into a ConsensusResult.
//
// The expiry timestamp is evaluated lazily: nothing happens when a round
// passes expiry until some operation reads the clock.
type BallotBox struct {
	mu             sync.Mutex
	roundID        uint64
	createdSlot    uint64
	thresholdBps   uint16
	operators      []Pubkey
	tieBreaker     Pubkey
	winning        Ballot
	decidedSlot    uint64
	tieBreakerUsed bool
	finalized      bool
	votes          []OperatorVote
	tallies        []BallotTally
	expiry         time.Time

	clock   func() time.Time
	logger  *slog.Logger
	bus     *event.Bus
	metrics *consensusMetrics
}

// RoundID returns the round's id
func (b *BallotBox) RoundID() uint64 {
	return b.roundID
}

// CreatedSlot returns the slot the round was created at
func (b *BallotBox) CreatedSlot() uint64 {
	return b.createdSlot
}

// ThresholdBps returns the quorum threshold frozen at round creation
func (b *BallotBox) ThresholdBps() uint16 {
	return b.thresholdBps
}

// EligibleVoters returns a copy of the voter set frozen at round creation
func (b *BallotBox) EligibleVoters() []Pubkey {
	return slices.Clone(b.operators)
}

// Expiry returns the round's vote expiry timestamp
func (b *BallotBox) Expiry() time.Time {
	return b.expiry
}

// Decided returns true once consensus has been reached
func (b *BallotBox) Decided() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.decidedSlot != 0
}

// DecidedSlot returns the slot consensus was reached at, or zero
func (b *BallotBox) DecidedSlot() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.decidedSlot
}

// TieBreakerUsed returns true if the round was decided by the tie-breaker
func (b *BallotBox) TieBreakerUsed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tieBreakerUsed
}

// WinningBallot returns the winning ballot, or false if undecided
func (b *BallotBox) WinningBallot() (Ballot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.decidedSlot == 0 {
		return Ballot{}, false
	}
	return b.winning, true
}

// Votes returns a copy of the live operator votes
func (b *BallotBox) Votes() []OperatorVote {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.votes)
}

// Tallies returns a copy of the ballot tallies
func (b *BallotBox) Tallies() []BallotTally {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.tallies)
}

func (b *BallotBox) expired(now time.Time) bool {
	return !now.Before(b.expiry)
}

func (b *BallotBox) voteIndex(operator Pubkey) int {
	return slices.IndexFunc(b.votes, func(vote OperatorVote) bool {
		return vote.Operator == operator
	})
}

// CastVote records one operator's vote for a ballot. Votes may still be
// cast after consensus is reached, and are recorded and tallied, but the
// winning ballot never changes once set.
func (b *BallotBox) CastVote(operator Pubkey, vote Ballot, slot uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return ErrAlreadyFinalized
	}
	if !slices.Contains(b.operators, operator) {
		return ErrNotWhitelisted
	}
	if b.expired(b.clock()) {
		return ErrVotingExpired
	}
	if !vote.Valid() {
		return ErrInvalidBallot
	}
	if b.voteIndex(operator) >= 0 {
		return ErrAlreadyVoted
	}

	// Find an existing tally for this ballot value
	tallyIndex := slices.IndexFunc(b.tallies, func(tally BallotTally) bool {
		return tally.Ballot == vote
	})

	// Capacity checks come before any mutation so a failed vote leaves
	// the box untouched
	if len(b.votes) >= MaxOperatorVotes {
		return ErrCapacity
	}
	if tallyIndex < 0 && len(b.tallies) >= MaxBallotTallies {
		return ErrCapacity
	}

	if tallyIndex < 0 {
		tallyIndex = len(b.tallies)
		b.tallies = append(b.tallies, BallotTally{
			Index:  tallyIndex,
			Ballot: vote,
		})
	}
	b.tallies[tallyIndex].Votes++
	b.votes = append(b.votes, OperatorVote{
		Operator:   operator,
		SlotVoted:  slot,
		TallyIndex: tallyIndex,
	})
	if b.metrics != nil {
		b.metrics.votesTotal.Inc()
	}
	b.logger.Debug(
		"vote cast",
		"operator", operator.String(),
		"slot", slot,
		"tally_index", tallyIndex,
		"votes", b.tallies[tallyIndex].Votes,
	)

	// The decided transition happens at most once
	if b.decidedSlot == 0 {
		tallyBps := uint64(b.tallies[tallyIndex].Votes) * 10000 /
			uint64(len(b.operators))
		if tallyBps >= uint64(b.thresholdBps) {
			b.decide(vote, slot, false)
		}
	}
	return nil
}

// RemoveVote withdraws an operator's live vote. Valid only while the round
// is open and unexpired. The matching tally is decremented but never
// removed, keeping tally indexes stable.
func (b *BallotBox) RemoveVote(operator Pubkey) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return ErrAlreadyFinalized
	}
	if b.expired(b.clock()) {
		return ErrVotingExpired
	}
	if b.decidedSlot != 0 {
		return ErrAlreadyDecided
	}
	voteIndex := b.voteIndex(operator)
	if voteIndex < 0 {
		return ErrNeverVoted
	}
	tallyIndex := b.votes[voteIndex].TallyIndex
	b.votes = slices.Delete(b.votes, voteIndex, voteIndex+1)
	if b.tallies[tallyIndex].Votes > 0 {
		b.tallies[tallyIndex].Votes--
	}
	return nil
}

// SetTieBreaker lets the tie-breaker authority pick any tallied ballot,
// including a zero-vote one, once the round has expired without reaching
// threshold
func (b *BallotBox) SetTieBreaker(
	admin Pubkey,
	tallyIndex int,
	slot uint64,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return ErrAlreadyFinalized
	}
	if admin != b.tieBreaker {
		return ErrNotTieBreaker
	}
	if b.decidedSlot != 0 {
		return ErrAlreadyDecided
	}
	if !b.expired(b.clock()) {
		return ErrVotingNotExpired
	}
	if tallyIndex < 0 || tallyIndex >= len(b.tallies) {
		return ErrInvalidTallyIndex
	}
	b.decide(b.tallies[tallyIndex].Ballot, slot, true)
	return nil
}

// Reset clears all votes and tallies so a round whose tally set filled up
// with junk ballots can start over. Only the tie-breaker authority may
// reset, only pre-expiry and pre-decision, and only when the tally set is
// at capacity. Tally indexes restart from zero afterwards.
func (b *BallotBox) Reset(admin Pubkey) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return ErrAlreadyFinalized
	}
	if admin != b.tieBreaker {
		return ErrNotTieBreaker
	}
	if b.decidedSlot != 0 {
		return ErrAlreadyDecided
	}
	if b.expired(b.clock()) {
		return ErrVotingExpired
	}
	if len(b.tallies) != MaxBallotTallies {
		return ErrTalliesNotFull
	}
	b.votes = nil
	b.tallies = nil
	b.logger.Info("round reset")
	return nil
}

// Finalize consumes a decided round into a write-once ConsensusResult.
// The round is terminal afterwards.
func (b *BallotBox) Finalize() (*ConsensusResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return nil, ErrAlreadyFinalized
	}
	if b.decidedSlot == 0 {
		return nil, ErrNotDecided
	}
	b.finalized = true
	result := &ConsensusResult{
		roundID: b.roundID,
		ballot:  b.winning,
	}
	b.logger.Info(
		"round finalized",
		"root", result.ballot.MerkleRoot.String(),
	)
	if b.metrics != nil {
		b.metrics.roundsFinalized.Inc()
	}
	if b.bus != nil {
		b.bus.Publish(
			RoundFinalizedEventType,
			event.New(RoundFinalizedEventType, RoundFinalizedEvent{
				RoundID: b.roundID,
				Result:  result,
			}),
		)
	}
	return result, nil
}

// decide records the winning ballot. Callers hold the lock and have
// checked decidedSlot == 0.
func (b *BallotBox) decide(winner Ballot, slot uint64, tieBreaker bool) {
	b.decidedSlot = slot
	b.winning = winner
	b.tieBreakerUsed = tieBreaker
	method := "threshold"
	if tieBreaker {
		method = "tie_breaker"
	}
	b.logger.Info(
		"consensus reached",
		"slot", slot,
		"method", method,
		"root", winner.MerkleRoot.String(),
	)
	if b.metrics != nil {
		b.metrics.roundsDecided.WithLabelValues(method).Inc()
	}
	if b.bus != nil {
		b.bus.Publish(
			RoundDecidedEventType,
			event.New(RoundDecidedEventType, RoundDecidedEvent{
				RoundID:    b.roundID,
				Ballot:     winner,
				Slot:       slot,
				TieBreaker: tieBreaker,
			}),
		)
	}
}
