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

package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// HashSize is the size of a tree node hash in bytes
const HashSize = sha256.Size

// Domain-separation prefixes. Leaf and internal node inputs are hashed
// under distinct prefixes to prevent second-preimage attacks where an
// internal node is presented as a leaf.
// https://flawed.net.nz/2018/02/21/attacking-merkle-trees-with-a-second-preimage-attack
const (
	leafPrefix byte = 0x00
	nodePrefix byte = 0x01
)

var (
	ErrNoLeaves        = errors.New("tree has no leaves")
	ErrIndexOutOfRange = errors.New("leaf index out of range")
)

// Hash is a 32-byte SHA-256 tree node hash
type Hash [HashSize]byte

// IsZero returns true if the hash is all zeros
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the hex encoding of the hash
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashLeaf hashes raw leaf content under the leaf domain prefix
func HashLeaf(content []byte) Hash {
	hasher := sha256.New()
	hasher.Write([]byte{leafPrefix})
	hasher.Write(content)
	var ret Hash
	copy(ret[:], hasher.Sum(nil))
	return ret
}

// HashNodes hashes a pair of child hashes under the internal-node domain
// prefix. The pair is ordered byte-lexicographically before hashing, so the
// result is independent of which child is passed first and proofs carry no
// left/right direction bits.
func HashNodes(a, b Hash) Hash {
	if bytes.Compare(b[:], a[:]) < 0 {
		a, b = b, a
	}
	hasher := sha256.New()
	hasher.Write([]byte{nodePrefix})
	hasher.Write(a[:])
	hasher.Write(b[:])
	var ret Hash
	copy(ret[:], hasher.Sum(nil))
	return ret
}

// Tree is a binary hash tree over an ordered list of leaf contents. It is
// immutable once built.
type Tree struct {
	// levels[0] holds the (prefixed) leaf hashes, each subsequent level
	// holds the parent hashes of the previous one, and the final level
	// holds the single root
	levels [][]Hash
}

// NewTree builds a tree bottom-up from ordered leaf contents. At each level
// adjacent nodes are paired; an unpaired trailing node is promoted unchanged
// to the next level. Proof generation and verification share this
// convention.
func NewTree(leafContents [][]byte) (*Tree, error) {
	if len(leafContents) == 0 {
		return nil, ErrNoLeaves
	}
	leaves := make([]Hash, len(leafContents))
	for i, content := range leafContents {
		leaves[i] = HashLeaf(content)
	}
	levels := [][]Hash{leaves}
	for current := leaves; len(current) > 1; {
		next := make([]Hash, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 < len(current) {
				next = append(next, HashNodes(current[i], current[i+1]))
			} else {
				// Odd node carries forward without re-hashing
				next = append(next, current[i])
			}
		}
		levels = append(levels, next)
		current = next
	}
	return &Tree{levels: levels}, nil
}

// Root returns the tree's root hash
func (t *Tree) Root() Hash {
	return t.levels[len(t.levels)-1][0]
}

// NumLeaves returns the number of leaves in the tree
func (t *Tree) NumLeaves() int {
	return len(t.levels[0])
}

// Proof returns the ordered sibling hashes encountered while climbing from
// leaf index to the root. Levels where the node has no sibling (a promoted
// odd node) contribute nothing. The proof is non-nil even when empty, so
// an empty proof (single-leaf tree) stays distinct from an absent one.
func (t *Tree) Proof(index int) ([]Hash, error) {
	if index < 0 || index >= t.NumLeaves() {
		return nil, ErrIndexOutOfRange
	}
	proof := make([]Hash, 0, len(t.levels)-1)
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := index ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		index >>= 1
	}
	return proof, nil
}

// Verify checks that leafContent is a member of the tree with the given
// root, using the ordered sibling hashes in proof
func Verify(leafContent []byte, proof []Hash, root Hash) bool {
	node := HashLeaf(leafContent)
	for _, sibling := range proof {
		node = HashNodes(node, sibling)
	}
	return node == root
}
