package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/coreledger/powchain/foundation/blockchain/chainerr"
	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/merkle"
	"github.com/coreledger/powchain/foundation/blockchain/storage"
	"github.com/coreledger/powchain/foundation/blockchain/trie"
)

// Validation errors surfaced by InsertBlock when Result is Invalid.
var (
	ErrStaleTimestamp  = errors.New("block timestamp does not exceed parent")
	ErrWrongDifficulty = errors.New("block difficulty does not match the difficulty rule")
	ErrPOWNotSolved    = errors.New("block id exceeds its difficulty target")
	ErrBadMerkleRoot   = errors.New("merkle root does not match transactions")
	ErrBadStateRoot    = errors.New("post-execution state root does not match header")
)

// InsertBlock validates block and, if valid, commits it to storage and
// re-evaluates the chain tip by total difficulty. The pipeline runs in a
// fixed order: structural checks first (parent known, timestamp,
// difficulty, proof of work, merkle root) before the expensive step
// (sequential transaction execution), so malformed blocks are rejected
// cheaply.
func (s *State) InsertBlock(block database.Block) (Result, error) {
	id := block.ID()

	if s.blacklist.Contains(id) {
		return Invalid, fmt.Errorf("state: block %s previously rejected", id)
	}

	s.mu.RLock()
	_, known := s.index[id]
	s.mu.RUnlock()
	if known {
		return AlreadyKnown, nil
	}

	s.mu.RLock()
	parentInfo, parentKnown := s.index[block.Header.Parent]
	s.mu.RUnlock()

	if !parentKnown {
		s.parkOrphan(block)
		return Orphan, nil
	}

	if err := s.validateBlock(block, parentInfo); err != nil {
		s.blacklist.Add(id, struct{}{})
		return Invalid, err
	}

	newRoot, nodes, err := execute(parentInfo.Header.StateRoot, s.storage, block.Transactions, block.Header.Miner)
	if err != nil {
		s.blacklist.Add(id, struct{}{})
		return Invalid, err
	}
	if newRoot != block.Header.StateRoot {
		s.blacklist.Add(id, struct{}{})
		return Invalid, ErrBadStateRoot
	}

	info := blockInfo{
		Header:          block.Header,
		Height:          parentInfo.Height + 1,
		TotalDifficulty: new(big.Int).Add(parentInfo.TotalDifficulty, work(block.Header.Difficulty)),
	}

	// A commit failure means the durable store broke under a block already
	// judged valid, not that the block is bad: it is not blacklisted, and
	// it is reported as a distinct Result so the caller aborts the process
	// instead of treating it like an ordinary rejection.
	if err := s.commit(block, info, nodes); err != nil {
		return StorageFailure, chainerr.Wrap(chainerr.Storage, err)
	}

	s.evHandler("state: accepted block %s at height %d", id, info.Height)

	s.promoteOrphans(id)

	return Accepted, nil
}

// validateBlock runs every structural check that does not require
// executing the block's transactions.
func (s *State) validateBlock(block database.Block, parentInfo blockInfo) error {
	if block.Header.TimestampMs <= parentInfo.Header.TimestampMs {
		return ErrStaleTimestamp
	}

	wantDifficulty := DifficultyRule(parentInfo.Header)
	if block.Header.Difficulty != wantDifficulty {
		return ErrWrongDifficulty
	}

	id := block.ID()
	if !id.LessOrEqual(block.Header.Difficulty) {
		return ErrPOWNotSolved
	}

	ids := make([]database.Hash, len(block.Transactions))
	for i, tx := range block.Transactions {
		ids[i] = tx.ID()
	}
	if merkle.Root(ids) != block.Header.MerkleRoot {
		return ErrBadMerkleRoot
	}

	return nil
}

// commit atomically persists the block, the trie nodes execute produced,
// and the block's index entry, then, if it becomes the new tip, the tip
// pointer, all in one storage transaction: the block with the greatest
// total difficulty wins, ties broken in favor of whichever was recorded
// first (the existing tip is kept on a tie, since it was necessarily
// committed no later than the challenger). A crash between validation and
// this call leaves storage exactly as it was before the block arrived;
// there is no window where the block, its nodes, or its index entry are
// visible without the others.
func (s *State) commit(block database.Block, info blockInfo, nodes map[trie.Hash]trie.Node) error {
	id := block.ID()

	s.mu.Lock()
	becomesTip := info.TotalDifficulty.Cmp(s.index[s.tip].TotalDifficulty) > 0
	s.mu.Unlock()

	if err := s.storage.WithBatch(func(b *storage.Batch) error {
		if err := b.PutBlock(block); err != nil {
			return err
		}
		if err := b.PutNodes(nodes); err != nil {
			return err
		}
		if err := putIndexEntry(b, id, info); err != nil {
			return err
		}
		if becomesTip {
			if err := b.PutMeta(metaTip, id[:]); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.index[id] = info
	if becomesTip {
		s.tip = id
	}
	s.mu.Unlock()

	return nil
}
