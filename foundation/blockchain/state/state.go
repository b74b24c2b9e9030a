// Package state implements the Chain & State Engine: block and transaction
// validation, sequential execution against the State Trie, fork choice by
// total difficulty, and atomic commit to storage.
package state

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/genesis"
	"github.com/coreledger/powchain/foundation/blockchain/storage"
	"github.com/coreledger/powchain/foundation/blockchain/trie"
	lru "github.com/hashicorp/golang-lru"
)

// EventHandler receives progress notifications during validation and
// commit, the same style of hook the teacher's blockchain package uses for
// its own logging.
type EventHandler func(format string, args ...any)

// orphanCapacity bounds the total number of blocks held in the orphan
// buffer awaiting a missing parent.
const orphanCapacity = 512

// blacklistCapacity bounds the recently-seen-invalid block ID cache.
const blacklistCapacity = 1024

// Result reports the outcome of InsertBlock.
type Result int

// The possible outcomes of InsertBlock.
const (
	Accepted Result = iota
	AlreadyKnown
	Orphan
	Invalid

	// StorageFailure means the block passed every validation and execution
	// check but the durable store failed while committing it. Unlike
	// Invalid, this is not the block's fault: it is never blacklisted, and
	// callers should treat it as fatal (see chainerr.Storage) rather than
	// as an ordinary rejection.
	StorageFailure
)

// String renders Result for logging.
func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case AlreadyKnown:
		return "already_known"
	case Orphan:
		return "orphan"
	case Invalid:
		return "invalid"
	case StorageFailure:
		return "storage_failure"
	default:
		return "unknown"
	}
}

// blockInfo is the in-memory index entry per committed block.
type blockInfo struct {
	Header          database.BlockHeader
	Height          uint64
	TotalDifficulty *big.Int
}

// Config configures a new State.
type Config struct {
	Storage   *storage.Storage
	EvHandler EventHandler
}

// State manages the blockchain's in-memory index and orchestrates
// validation, execution, and commit against Storage.
type State struct {
	storage   *storage.Storage
	evHandler EventHandler

	mu    sync.RWMutex
	index map[database.Hash]blockInfo
	tip   database.Hash

	orphanMu      sync.Mutex
	orphansByHash map[database.Hash][]database.Block // keyed by missing parent
	orphanOrder   []database.Hash                    // FIFO of missing-parent keys for eviction

	blacklist *lru.Cache
}

// New constructs a State backed by strg, seeding genesis if storage is
// empty, or rebuilding the in-memory index by walking back from the
// persisted tip otherwise.
func New(cfg Config) (*State, error) {
	blacklist, err := lru.New(blacklistCapacity)
	if err != nil {
		return nil, fmt.Errorf("constructing blacklist cache: %w", err)
	}

	s := &State{
		storage:       cfg.Storage,
		evHandler:     cfg.EvHandler,
		index:         make(map[database.Hash]blockInfo),
		orphansByHash: make(map[database.Hash][]database.Block),
		blacklist:     blacklist,
	}
	if s.evHandler == nil {
		s.evHandler = func(string, ...any) {}
	}

	tipRaw, ok, err := cfg.Storage.GetMeta(metaTip)
	if err != nil {
		return nil, err
	}

	if !ok {
		if err := s.seedGenesis(); err != nil {
			return nil, err
		}
		return s, nil
	}

	var tip database.Hash
	copy(tip[:], tipRaw)
	if err := s.rebuildIndex(tip); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *State) seedGenesis() error {
	s.evHandler("state: seeding genesis block")

	block, err := genesis.Seed(s.storage)
	if err != nil {
		return err
	}

	if err := s.storage.PutBlock(block); err != nil {
		return err
	}

	info := blockInfo{
		Header:          block.Header,
		Height:          0,
		TotalDifficulty: work(block.Header.Difficulty),
	}

	id := block.ID()
	if err := s.storage.PutMeta(indexKey(id), encodeIndexEntry(info)); err != nil {
		return err
	}
	if err := s.storage.PutMeta(metaTip, id[:]); err != nil {
		return err
	}

	s.index[id] = info
	s.tip = id
	return nil
}

// rebuildIndex walks backward from tip through parent pointers, loading
// each block's persisted index entry, until genesis (the zero parent) is
// reached.
func (s *State) rebuildIndex(tip database.Hash) error {
	cur := tip
	for {
		block, ok, err := s.storage.GetBlock(cur)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("state: tip block %s missing from storage", cur)
		}

		info, err := s.loadIndexEntry(cur)
		if err != nil {
			return err
		}

		s.index[cur] = info

		var zero database.Hash
		if block.Header.Parent == zero {
			break
		}
		cur = block.Header.Parent
	}

	s.tip = tip
	return nil
}

// Tip returns the current best block's ID, height, and total difficulty.
func (s *State) Tip() (database.Hash, uint64, *big.Int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := s.index[s.tip]
	return s.tip, info.Height, new(big.Int).Set(info.TotalDifficulty)
}

// GetBlock returns the block with the given ID, if known to storage.
func (s *State) GetBlock(id database.Hash) (database.Block, bool, error) {
	return s.storage.GetBlock(id)
}

// IsBlacklisted reports whether id has been permanently rejected by
// InsertBlock's validation pipeline, used by the p2p layer to recognize and
// penalize peers that keep re-sending known-bad blocks.
func (s *State) IsBlacklisted(id database.Hash) bool {
	return s.blacklist.Contains(id)
}

// Store exposes the underlying trie store, for callers (the Miner worker,
// tests constructing forks) that need to assemble a candidate block on a
// parent that isn't necessarily the current tip via PrepareChild.
func (s *State) Store() trie.Store {
	return s.storage
}

// StateAt returns a read-only account view pinned to the state root of the
// block with the given ID.
func (s *State) StateAt(blockID database.Hash) (*View, error) {
	s.mu.RLock()
	info, ok := s.index[blockID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("state: block %s not indexed", blockID)
	}
	return newView(info.Header.StateRoot, s.storage), nil
}

// GetAccount returns the account at addr under the current tip's state.
func (s *State) GetAccount(addr database.Address) (database.Account, error) {
	s.mu.RLock()
	tip := s.tip
	s.mu.RUnlock()

	view, err := s.StateAt(tip)
	if err != nil {
		return database.Account{}, err
	}
	return view.GetAccount(addr)
}

// LongestChain returns the ordered list of block IDs from genesis to tip.
func (s *State) LongestChain() ([]database.Hash, error) {
	s.mu.RLock()
	tip := s.tip
	s.mu.RUnlock()

	var chain []database.Hash
	cur := tip
	for {
		chain = append([]database.Hash{cur}, chain...)

		block, ok, err := s.storage.GetBlock(cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("state: block %s missing from storage", cur)
		}

		var zero database.Hash
		if block.Header.Parent == zero {
			break
		}
		cur = block.Header.Parent
	}

	return chain, nil
}
