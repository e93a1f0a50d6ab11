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

package ballot_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/exo-tech-xyz/gov-v1/ballot"
)

func TestNewConfigValidation(t *testing.T) {
	base := ballot.ConfigParams{
		Authority:    testAuthority,
		TieBreaker:   testTieBreaker,
		ThresholdBps: 6666,
		VoteDuration: time.Hour,
	}

	params := base
	params.ThresholdBps = 0
	_, err := ballot.NewConfig(params)
	require.ErrorIs(t, err, ballot.ErrInvalidThreshold)

	params = base
	params.ThresholdBps = 10001
	_, err = ballot.NewConfig(params)
	require.ErrorIs(t, err, ballot.ErrInvalidThreshold)

	params = base
	params.VoteDuration = 0
	_, err = ballot.NewConfig(params)
	require.ErrorIs(t, err, ballot.ErrInvalidDuration)

	params = base
	params.Operators = operatorKeys(ballot.MaxWhitelistedOperators + 1)
	_, err = ballot.NewConfig(params)
	require.ErrorIs(t, err, ballot.ErrCapacity)

	// 10000 bps (unanimity) is legal
	params = base
	params.ThresholdBps = 10000
	_, err = ballot.NewConfig(params)
	require.NoError(t, err)
}

func TestUpdateRequiresAuthority(t *testing.T) {
	cfg, _ := testConfig(t, 2, 6666)
	threshold := uint16(5000)
	require.ErrorIs(
		t,
		cfg.Update(operatorKey(0), ballot.ConfigUpdate{
			ThresholdBps: &threshold,
		}),
		ballot.ErrNotAuthority,
	)
	require.NoError(t, cfg.Update(testAuthority, ballot.ConfigUpdate{
		ThresholdBps: &threshold,
	}))
	require.Equal(t, uint16(5000), cfg.ThresholdBps())
}

func TestUpdateValidation(t *testing.T) {
	cfg, _ := testConfig(t, 2, 6666)
	badThreshold := uint16(0)
	require.ErrorIs(
		t,
		cfg.Update(testAuthority, ballot.ConfigUpdate{
			ThresholdBps: &badThreshold,
		}),
		ballot.ErrInvalidThreshold,
	)
	badDuration := -time.Second
	newTieBreaker := ballot.Pubkey{0xcc}
	// An invalid field rejects the whole update
	require.ErrorIs(
		t,
		cfg.Update(testAuthority, ballot.ConfigUpdate{
			TieBreaker:   &newTieBreaker,
			VoteDuration: &badDuration,
		}),
		ballot.ErrInvalidDuration,
	)
	require.Equal(t, testTieBreaker, cfg.TieBreaker())
}

func TestPartialUpdate(t *testing.T) {
	cfg, _ := testConfig(t, 2, 6666)
	newTieBreaker := ballot.Pubkey{0xcc}
	newDuration := 30 * time.Minute
	require.NoError(t, cfg.Update(testAuthority, ballot.ConfigUpdate{
		TieBreaker:   &newTieBreaker,
		VoteDuration: &newDuration,
	}))
	require.Equal(t, newTieBreaker, cfg.TieBreaker())
	require.Equal(t, newDuration, cfg.VoteDuration())
	// Untouched fields keep their values
	require.Equal(t, uint16(6666), cfg.ThresholdBps())
}

func TestTwoPhaseAuthorityTransfer(t *testing.T) {
	cfg, _ := testConfig(t, 2, 6666)
	proposed := ballot.Pubkey{0xdd}

	// Finalize without a proposal fails
	require.ErrorIs(
		t,
		cfg.FinalizeProposedAuthority(proposed),
		ballot.ErrNoProposedAuthority,
	)

	require.NoError(t, cfg.Update(testAuthority, ballot.ConfigUpdate{
		ProposedAuthority: &proposed,
	}))
	// Proposing does not transfer authority yet
	require.Equal(t, testAuthority, cfg.Authority())

	// Only the proposed party may finalize
	require.ErrorIs(
		t,
		cfg.FinalizeProposedAuthority(ballot.Pubkey{0xee}),
		ballot.ErrNoProposedAuthority,
	)
	require.NoError(t, cfg.FinalizeProposedAuthority(proposed))
	require.Equal(t, proposed, cfg.Authority())

	// The old authority is out, the new one is in
	threshold := uint16(5000)
	require.ErrorIs(
		t,
		cfg.Update(testAuthority, ballot.ConfigUpdate{
			ThresholdBps: &threshold,
		}),
		ballot.ErrNotAuthority,
	)
	require.NoError(t, cfg.Update(proposed, ballot.ConfigUpdate{
		ThresholdBps: &threshold,
	}))
}

func TestUpdateWhitelist(t *testing.T) {
	cfg, _ := testConfig(t, 2, 6666)

	require.ErrorIs(
		t,
		cfg.UpdateWhitelist(operatorKey(0), nil, nil),
		ballot.ErrNotAuthority,
	)
	// Overlapping add/remove rejects the whole call
	require.ErrorIs(
		t,
		cfg.UpdateWhitelist(
			testAuthority,
			[]ballot.Pubkey{operatorKey(5)},
			[]ballot.Pubkey{operatorKey(5)},
		),
		ballot.ErrOverlappingWhitelist,
	)

	require.NoError(
		t,
		cfg.UpdateWhitelist(
			testAuthority,
			[]ballot.Pubkey{operatorKey(5)},
			[]ballot.Pubkey{operatorKey(0)},
		),
	)
	operators := cfg.Operators()
	require.Len(t, operators, 2)
	require.Contains(t, operators, operatorKey(1))
	require.Contains(t, operators, operatorKey(5))
	require.NotContains(t, operators, operatorKey(0))

	// Re-adding an existing operator is a no-op
	require.NoError(
		t,
		cfg.UpdateWhitelist(
			testAuthority,
			[]ballot.Pubkey{operatorKey(5)},
			nil,
		),
	)
	require.Len(t, cfg.Operators(), 2)
}

func TestWhitelistCapacity(t *testing.T) {
	cfg, _ := testConfig(t, ballot.MaxWhitelistedOperators, 6666)
	require.ErrorIs(
		t,
		cfg.UpdateWhitelist(
			testAuthority,
			[]ballot.Pubkey{{0xfe}},
			nil,
		),
		ballot.ErrCapacity,
	)
	// Swapping within capacity is fine
	require.NoError(
		t,
		cfg.UpdateWhitelist(
			testAuthority,
			[]ballot.Pubkey{{0xfe}},
			[]ballot.Pubkey{operatorKey(0)},
		),
	)
}
