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

import "errors"

// Failed preconditions are reported synchronously to the caller and leave
// all state untouched. Nothing is retried internally.
var (
	// Validation
	ErrNotWhitelisted       = errors.New("operator not whitelisted")
	ErrNotAuthority         = errors.New("caller is not the config authority")
	ErrNotTieBreaker        = errors.New("caller is not the tie-breaker authority")
	ErrNoProposedAuthority  = errors.New("caller is not the proposed authority")
	ErrInvalidBallot        = errors.New("ballot has a zero merkle root")
	ErrInvalidTallyIndex    = errors.New("tally index out of range")
	ErrOverlappingWhitelist = errors.New("operator present in both add and remove lists")
	ErrInvalidThreshold     = errors.New("threshold must be in (0, 10000] bps")
	ErrInvalidDuration      = errors.New("vote duration must be positive")

	// State
	ErrAlreadyVoted     = errors.New("operator has already voted")
	ErrNeverVoted       = errors.New("operator has not voted")
	ErrVotingExpired    = errors.New("voting has expired")
	ErrVotingNotExpired = errors.New("voting has not expired")
	ErrAlreadyDecided   = errors.New("consensus already reached")
	ErrNotDecided       = errors.New("consensus not reached")
	ErrAlreadyFinalized = errors.New("round already finalized")
	ErrTalliesNotFull   = errors.New("ballot tallies not at capacity")

	// Capacity
	ErrCapacity = errors.New("bounded collection at capacity")
)
