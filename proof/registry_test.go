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

package proof_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/exo-tech-xyz/gov-v1/proof"
)

type registryClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *registryClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *registryClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRecordKeyDeterministic(t *testing.T) {
	keyA := proof.NewRecordKey(7, testPubkey(0xa1))
	require.Equal(t, keyA, proof.NewRecordKey(7, testPubkey(0xa1)))
	require.NotEqual(t, keyA, proof.NewRecordKey(8, testPubkey(0xa1)))
	require.NotEqual(t, keyA, proof.NewRecordKey(7, testPubkey(0xa2)))
}

func TestRegistryCreateAndGet(t *testing.T) {
	snap, result := finalizedResult(t)
	registry := proof.NewRegistry(proof.RegistryConfig{Allowance: 5000})
	bundle := snap.Bundles[0]
	payer := testPubkey(0x60)

	record, err := registry.Create(
		payer,
		result,
		bundle.MetaLeaf,
		bundle.Proof,
		time.Now().Add(time.Hour),
	)
	require.NoError(t, err)
	require.Equal(t, uint64(5000), record.Allowance)

	// Stored unverified; verification is a separate repeatable operation
	require.NoError(t, record.Verify(nil, nil))

	got := registry.Get(result.RoundID(), bundle.MetaLeaf.Validator)
	require.Same(t, record, got)
	require.Nil(t, registry.Get(result.RoundID(), testPubkey(0x77)))

	// One record per (round, validator)
	_, err = registry.Create(
		payer,
		result,
		bundle.MetaLeaf,
		bundle.Proof,
		time.Now().Add(time.Hour),
	)
	require.ErrorIs(t, err, proof.ErrRecordExists)
}

func TestRegistryCloseByPayer(t *testing.T) {
	snap, result := finalizedResult(t)
	clock := &registryClock{now: time.Unix(1_700_000_000, 0)}
	registry := proof.NewRegistry(proof.RegistryConfig{
		Allowance: 5000,
		Clock:     clock.Now,
	})
	bundle := snap.Bundles[0]
	payer := testPubkey(0x60)
	deadline := clock.Now().Add(time.Hour)
	_, err := registry.Create(payer, result, bundle.MetaLeaf, bundle.Proof, deadline)
	require.NoError(t, err)

	// Payer closes before the deadline and gets the allowance back
	refundee, refund, err := registry.Close(
		payer,
		result.RoundID(),
		bundle.MetaLeaf.Validator,
	)
	require.NoError(t, err)
	require.Equal(t, payer, refundee)
	require.Equal(t, uint64(5000), refund)
	require.Nil(t, registry.Get(result.RoundID(), bundle.MetaLeaf.Validator))

	_, _, err = registry.Close(
		payer,
		result.RoundID(),
		bundle.MetaLeaf.Validator,
	)
	require.ErrorIs(t, err, proof.ErrRecordNotFound)
}

func TestRegistryCloseAfterDeadline(t *testing.T) {
	snap, result := finalizedResult(t)
	clock := &registryClock{now: time.Unix(1_700_000_000, 0)}
	registry := proof.NewRegistry(proof.RegistryConfig{
		Allowance: 5000,
		Clock:     clock.Now,
	})
	bundle := snap.Bundles[0]
	payer := testPubkey(0x60)
	stranger := testPubkey(0x61)
	deadline := clock.Now().Add(time.Hour)
	_, err := registry.Create(payer, result, bundle.MetaLeaf, bundle.Proof, deadline)
	require.NoError(t, err)

	// A non-payer cannot close before the deadline
	_, _, err = registry.Close(
		stranger,
		result.RoundID(),
		bundle.MetaLeaf.Validator,
	)
	require.ErrorIs(t, err, proof.ErrCloseNotAllowed)

	// After the deadline anyone may close; the allowance still goes to
	// the payer
	clock.Advance(2 * time.Hour)
	refundee, refund, err := registry.Close(
		stranger,
		result.RoundID(),
		bundle.MetaLeaf.Validator,
	)
	require.NoError(t, err)
	require.Equal(t, payer, refundee)
	require.Equal(t, uint64(5000), refund)
}
