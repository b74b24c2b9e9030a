package state

import (
	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/trie"
)

// PrepareBlock assembles an unmined candidate block extending the current
// tip: it speculatively executes trans against the tip's state to compute
// the header's state_root and merkle_root up front, the way the Miner
// worker needs before it starts searching for a nonce. The returned
// block's Nonce is always zero; InsertBlock still re-executes trans itself
// once a solving nonce is found, so a failing speculative execution here
// just means trans shouldn't be offered to the miner, not a consensus
// shortcut.
func (s *State) PrepareBlock(miner database.Address, timestampMs uint64, trans []database.SignedTx) (database.Block, error) {
	s.mu.RLock()
	tip := s.tip
	parentHeader := s.index[tip].Header
	s.mu.RUnlock()

	return PrepareChild(s.storage, tip, parentHeader, miner, timestampMs, trans)
}

// PrepareChild builds an unmined block extending a specific, already-known
// parent (identified by parentID and its header) rather than necessarily
// the chain's current tip. This is what lets a node assemble a block on a
// competing fork tip, or park a not-yet-committed parent's child while
// syncing. The trie nodes its speculative execution produces are written
// to store, so a child of the returned block can itself be prepared before
// that block is committed.
func PrepareChild(store trie.Store, parentID database.Hash, parentHeader database.BlockHeader, miner database.Address, timestampMs uint64, trans []database.SignedTx) (database.Block, error) {
	stateRoot, nodes, err := execute(parentHeader.StateRoot, store, trans, miner)
	if err != nil {
		return database.Block{}, err
	}
	if err := store.PutNodes(nodes); err != nil {
		return database.Block{}, err
	}

	difficulty := DifficultyRule(parentHeader)
	return database.NewBlock(parentID, difficulty, timestampMs, stateRoot, miner, trans), nil
}
