package merkle_test

import (
	"testing"

	"github.com/coreledger/powchain/foundation/blockchain/merkle"
	"github.com/coreledger/powchain/foundation/blockchain/signature"
)

func leaf(b byte) merkle.Hash {
	var h merkle.Hash
	h[0] = b
	return h
}

func Test_EmptyTreeRoot(t *testing.T) {
	tree := merkle.New(nil)
	if tree.Root() != (signature.Hash{}) {
		t.Fatalf("expected zero hash for an empty tree")
	}
}

func Test_SingleLeafRootEqualsLeaf(t *testing.T) {
	l := leaf(1)
	tree := merkle.New([]merkle.Hash{l})

	// A lone leaf is the root: the duplicate-last-leaf rule only applies
	// to a level of two or more nodes with an odd count.
	expected := l
	if tree.Root() != expected {
		t.Fatalf("expected the root of a single-leaf tree to be the leaf")
	}
}

func Test_OddCountDuplicatesLastLeaf(t *testing.T) {
	leaves := []merkle.Hash{leaf(1), leaf(2), leaf(3)}
	tree := merkle.New(leaves)

	// Duplicating the last leaf should produce the same root as if a
	// fourth, identical leaf had been appended.
	padded := append(append([]merkle.Hash{}, leaves...), leaf(3))
	if tree.Root() != merkle.Root(padded) {
		t.Fatalf("odd-count tree root should match the duplicated-leaf padding")
	}
}

func Test_DeterministicRoot(t *testing.T) {
	leaves := []merkle.Hash{leaf(1), leaf(2), leaf(3), leaf(4)}

	r1 := merkle.Root(leaves)
	r2 := merkle.Root(leaves)
	if r1 != r2 {
		t.Fatalf("root computation must be deterministic")
	}
}

func Test_ProofVerifies(t *testing.T) {
	leaves := []merkle.Hash{leaf(1), leaf(2), leaf(3), leaf(4), leaf(5)}
	tree := merkle.New(leaves)
	root := tree.Root()

	for i, l := range leaves {
		proof := tree.Proof(i)
		if !merkle.Verify(root, l, proof, i, len(leaves)) {
			t.Fatalf("proof for leaf %d should verify", i)
		}
	}
}

func Test_ProofRejectsWrongLeaf(t *testing.T) {
	leaves := []merkle.Hash{leaf(1), leaf(2), leaf(3), leaf(4)}
	tree := merkle.New(leaves)
	root := tree.Root()

	proof := tree.Proof(0)
	if merkle.Verify(root, leaf(99), proof, 0, len(leaves)) {
		t.Fatalf("proof should not verify against a different leaf")
	}
}

func Test_ProofOutOfRange(t *testing.T) {
	leaves := []merkle.Hash{leaf(1), leaf(2)}
	tree := merkle.New(leaves)

	if proof := tree.Proof(5); proof != nil {
		t.Fatalf("expected nil proof for an out-of-range index")
	}
}
