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

package merkle_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exo-tech-xyz/gov-v1/merkle"
)

func testLeaves(n int) [][]byte {
	leaves := make([][]byte, n)
	for i := range leaves {
		leaves[i] = fmt.Appendf(nil, "leaf-%d", i)
	}
	return leaves
}

func TestNewTreeEmpty(t *testing.T) {
	_, err := merkle.NewTree(nil)
	require.ErrorIs(t, err, merkle.ErrNoLeaves)
}

func TestSingleLeaf(t *testing.T) {
	leaves := testLeaves(1)
	tree, err := merkle.NewTree(leaves)
	require.NoError(t, err)
	require.Equal(t, merkle.HashLeaf(leaves[0]), tree.Root())
	proof, err := tree.Proof(0)
	require.NoError(t, err)
	require.Empty(t, proof)
	require.True(t, merkle.Verify(leaves[0], proof, tree.Root()))
}

func TestProofRoundTrip(t *testing.T) {
	// Cover both power-of-two and odd leaf counts
	for _, n := range []int{1, 2, 3, 4, 5, 7, 8, 11, 16, 33} {
		t.Run(fmt.Sprintf("leaves_%d", n), func(t *testing.T) {
			leaves := testLeaves(n)
			tree, err := merkle.NewTree(leaves)
			require.NoError(t, err)
			for i := range n {
				proof, err := tree.Proof(i)
				require.NoError(t, err)
				require.True(
					t,
					merkle.Verify(leaves[i], proof, tree.Root()),
					"proof for leaf %d of %d failed", i, n,
				)
			}
		})
	}
}

func TestProofIndexOutOfRange(t *testing.T) {
	tree, err := merkle.NewTree(testLeaves(4))
	require.NoError(t, err)
	_, err = tree.Proof(-1)
	require.ErrorIs(t, err, merkle.ErrIndexOutOfRange)
	_, err = tree.Proof(4)
	require.ErrorIs(t, err, merkle.ErrIndexOutOfRange)
}

func TestTamperedLeafFails(t *testing.T) {
	leaves := testLeaves(9)
	tree, err := merkle.NewTree(leaves)
	require.NoError(t, err)
	for i := range leaves {
		proof, err := tree.Proof(i)
		require.NoError(t, err)
		tampered := append([]byte{}, leaves[i]...)
		tampered[0] ^= 0x01
		require.False(t, merkle.Verify(tampered, proof, tree.Root()))
	}
}

func TestTamperedProofFails(t *testing.T) {
	leaves := testLeaves(9)
	tree, err := merkle.NewTree(leaves)
	require.NoError(t, err)
	for i := range leaves {
		proof, err := tree.Proof(i)
		require.NoError(t, err)
		for j := range proof {
			tampered := append([]merkle.Hash{}, proof...)
			tampered[j][0] ^= 0x01
			require.False(t, merkle.Verify(leaves[i], tampered, tree.Root()))
		}
	}
}

func TestWrongRootFails(t *testing.T) {
	leaves := testLeaves(5)
	tree, err := merkle.NewTree(leaves)
	require.NoError(t, err)
	proof, err := tree.Proof(2)
	require.NoError(t, err)
	badRoot := tree.Root()
	badRoot[31] ^= 0x01
	require.False(t, merkle.Verify(leaves[2], proof, badRoot))
}

func TestHashNodesOrderIndependent(t *testing.T) {
	a := merkle.HashLeaf([]byte("a"))
	b := merkle.HashLeaf([]byte("b"))
	require.Equal(t, merkle.HashNodes(a, b), merkle.HashNodes(b, a))
}

func TestLeafNodeDomainSeparation(t *testing.T) {
	a := merkle.HashLeaf([]byte("x"))
	b := merkle.HashLeaf([]byte("y"))
	parent := merkle.HashNodes(a, b)
	// An internal node presented as leaf content must not reproduce the
	// parent hash
	var concat []byte
	concat = append(concat, a[:]...)
	concat = append(concat, b[:]...)
	require.NotEqual(t, parent, merkle.HashLeaf(concat))
}

func TestHashIsZero(t *testing.T) {
	var zero merkle.Hash
	require.True(t, zero.IsZero())
	require.False(t, merkle.HashLeaf([]byte("z")).IsZero())
}
