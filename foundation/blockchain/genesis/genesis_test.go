package genesis_test

import (
	"testing"

	"github.com/coreledger/powchain/foundation/blockchain/genesis"
	"github.com/coreledger/powchain/foundation/blockchain/trie"
)

type memStore struct {
	nodes map[trie.Hash]trie.Node
}

func newMemStore() *memStore {
	return &memStore{nodes: make(map[trie.Hash]trie.Node)}
}

func (m *memStore) GetNode(hash trie.Hash) (trie.Node, bool, error) {
	n, ok := m.nodes[hash]
	return n, ok, nil
}

func (m *memStore) PutNodes(nodes map[trie.Hash]trie.Node) error {
	for h, n := range nodes {
		m.nodes[h] = n
	}
	return nil
}

func Test_GodAddressParses(t *testing.T) {
	addr := genesis.GodAddress()
	if addr.IsZero() {
		t.Fatalf("expected a non-zero god address")
	}
	if addr.String() != "0x"+genesis.GodAddressHex {
		t.Fatalf("unexpected god address string: %s", addr.String())
	}
}

func Test_GodBalanceIsTwoToTheSixty(t *testing.T) {
	bal := genesis.GodBalance()
	if bal.BitLen() != genesis.GodBalanceShift+1 {
		t.Fatalf("expected balance to have bit length %d, got %d", genesis.GodBalanceShift+1, bal.BitLen())
	}
}

func Test_SeedIsDeterministic(t *testing.T) {
	block1, err := genesis.Seed(newMemStore())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	block2, err := genesis.Seed(newMemStore())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if block1.ID() != block2.ID() {
		t.Fatalf("genesis block ID must be deterministic across independent nodes")
	}
}

func Test_SeedHasZeroParent(t *testing.T) {
	block, err := genesis.Seed(newMemStore())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var zero [32]byte
	if block.Header.Parent != zero {
		t.Fatalf("expected genesis parent to be the zero hash")
	}
}

func Test_SeedGodAccountFunded(t *testing.T) {
	store := newMemStore()
	block, err := genesis.Seed(store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tr := trie.New(block.Header.StateRoot, store)
	acc, err := tr.Get(genesis.GodAddress())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acc.Nonce != 0 {
		t.Fatalf("expected nonce 0, got %d", acc.Nonce)
	}
	if acc.Balance.Cmp(genesis.GodBalance()) != 0 {
		t.Fatalf("expected god balance to match genesis.GodBalance()")
	}
}
