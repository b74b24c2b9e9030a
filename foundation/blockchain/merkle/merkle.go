// Package merkle builds the binary Merkle tree over a block's transaction
// IDs used to produce and verify a block's merkle_root.
package merkle

import (
	"github.com/coreledger/powchain/foundation/blockchain/signature"
)

// Hash is an alias for the shared 32-byte digest type.
type Hash = signature.Hash

// hashPair combines two child hashes into their parent's hash.
func hashPair(left, right Hash) Hash {
	buf := make([]byte, 0, 64)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return signature.Hash256(buf)
}

// Tree is a binary Merkle tree over a fixed set of leaves, retaining every
// level so that inclusion proofs can be constructed.
type Tree struct {
	levels [][]Hash
}

// New builds a Merkle tree over leaves. When a level has an odd number of
// nodes, the last node is duplicated to pair with itself — the documented
// policy for spec.md's "duplicate last leaf when count is odd".
func New(leaves []Hash) *Tree {
	if len(leaves) == 0 {
		return &Tree{}
	}

	levels := [][]Hash{leaves}
	for len(levels[len(levels)-1]) > 1 {
		cur := levels[len(levels)-1]
		next := make([]Hash, 0, (len(cur)+1)/2)
		for i := 0; i < len(cur); i += 2 {
			left := cur[i]
			right := left
			if i+1 < len(cur) {
				right = cur[i+1]
			}
			next = append(next, hashPair(left, right))
		}
		levels = append(levels, next)
	}

	return &Tree{levels: levels}
}

// Root returns the tree's root hash, or the zero hash for an empty tree.
func (t *Tree) Root() Hash {
	if len(t.levels) == 0 {
		return Hash{}
	}
	return t.levels[len(t.levels)-1][0]
}

// Root is a convenience wrapper computing the Merkle root over leaves
// directly, for callers that don't need a proof.
func Root(leaves []Hash) Hash {
	return New(leaves).Root()
}

// Proof returns the sibling hashes needed to recompute the root from the
// leaf at index, bottom level first. An empty proof means the index is out
// of range or the tree is empty.
func (t *Tree) Proof(index int) []Hash {
	var proof []Hash
	if len(t.levels) == 0 || index < 0 || index >= len(t.levels[0]) {
		return proof
	}

	cur := index
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		sib := cur ^ 1
		if sib < len(nodes) {
			proof = append(proof, nodes[sib])
		} else {
			proof = append(proof, nodes[cur])
		}
		cur /= 2
	}

	return proof
}

// Verify reports whether leaf, combined with proof at the given index out
// of leafSize total leaves, recomputes to root.
func Verify(root, leaf Hash, proof []Hash, index, leafSize int) bool {
	if index < 0 || index >= leafSize {
		return false
	}

	cur := leaf
	idx := index
	for _, sibling := range proof {
		if idx%2 == 0 {
			cur = hashPair(cur, sibling)
		} else {
			cur = hashPair(sibling, cur)
		}
		idx /= 2
	}

	return cur == root
}
