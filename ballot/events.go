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
	"time"

	"github.com/exo-tech-xyz/gov-v1/event"
)

const (
	RoundCreatedEventType   event.EventType = "ballot.round_created"
	RoundDecidedEventType   event.EventType = "ballot.round_decided"
	RoundFinalizedEventType event.EventType = "ballot.round_finalized"
)

// RoundCreatedEvent is published when a new voting round opens
type RoundCreatedEvent struct {
	RoundID uint64
	Slot    uint64
	Expiry  time.Time
}

// RoundDecidedEvent is published when a round reaches consensus, by
// threshold or tie-breaker
type RoundDecidedEvent struct {
	RoundID    uint64
	Ballot     Ballot
	Slot       uint64
	TieBreaker bool
}

// RoundFinalizedEvent is published when a decided round is consumed into
// a ConsensusResult
type RoundFinalizedEvent struct {
	RoundID uint64
	Result  *ConsensusResult
}
