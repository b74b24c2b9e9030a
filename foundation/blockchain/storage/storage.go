// Package storage persists blocks, trie nodes, and chain metadata to an
// embedded Badger key/value store. Content-addressed trie nodes need random
// point reads by hash, which rules out the append-only file layout used
// elsewhere in this codebase's ancestry.
package storage

import (
	"fmt"

	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/trie"
	"github.com/dgraph-io/badger/v2"
)

// Key-space prefixes partition a single Badger instance into three logical
// stores: blocks, state trie nodes, and small pieces of chain metadata
// (the current tip and the per-block index entries).
const (
	prefixBlock = 'b'
	prefixNode  = 's'
	prefixMeta  = 'm'
)

// Storage wraps an embedded Badger database.
type Storage struct {
	db *badger.DB
}

// Open opens (or creates) the Badger database rooted at dir.
func Open(dir string) (*Storage, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying database.
func (s *Storage) Close() error {
	return s.db.Close()
}

func blockKey(id database.Hash) []byte {
	key := make([]byte, 0, 1+len(id))
	key = append(key, prefixBlock)
	key = append(key, id[:]...)
	return key
}

func nodeKey(hash trie.Hash) []byte {
	key := make([]byte, 0, 1+len(hash))
	key = append(key, prefixNode)
	key = append(key, hash[:]...)
	return key
}

func metaKey(name string) []byte {
	return append([]byte{prefixMeta}, []byte(name)...)
}

// PutBlock persists a block keyed by its ID.
func (s *Storage) PutBlock(b database.Block) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blockKey(b.ID()), database.EncodeBlock(b))
	})
}

// GetBlock reads the block with the given ID, reporting false if absent.
func (s *Storage) GetBlock(id database.Hash) (database.Block, bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw = append([]byte{}, val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return database.Block{}, false, nil
	}
	if err != nil {
		return database.Block{}, false, err
	}

	block, err := database.DecodeBlock(raw)
	if err != nil {
		return database.Block{}, false, err
	}
	return block, true, nil
}

// GetNode implements trie.Store, reading a single trie node by its content
// hash.
func (s *Storage) GetNode(hash trie.Hash) (trie.Node, bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(hash))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw = append([]byte{}, val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return trie.Node{}, false, nil
	}
	if err != nil {
		return trie.Node{}, false, err
	}

	node, err := trie.DecodeNode(raw)
	if err != nil {
		return trie.Node{}, false, err
	}
	return node, true, nil
}

// PutNodes implements trie.Store, writing every node in nodes within a
// single transaction.
func (s *Storage) PutNodes(nodes map[trie.Hash]trie.Node) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for hash, node := range nodes {
			if err := txn.Set(nodeKey(hash), trie.EncodeNode(node)); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutMeta stores a small named metadata value (e.g. the current tip hash).
func (s *Storage) PutMeta(name string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey(name), value)
	})
}

// GetMeta reads a named metadata value, reporting false if absent.
func (s *Storage) GetMeta(name string) ([]byte, bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw = append([]byte{}, val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// WithBatch runs fn inside a single write transaction, giving callers (the
// chain engine's commit path) atomicity across multiple blocks/nodes/meta
// writes.
func (s *Storage) WithBatch(fn func(b *Batch) error) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return fn(&Batch{txn: txn})
	})
}

// Batch is a single atomic write transaction spanning blocks, trie nodes,
// and metadata.
type Batch struct {
	txn *badger.Txn
}

// PutBlock stages a block write within the batch.
func (b *Batch) PutBlock(blk database.Block) error {
	return b.txn.Set(blockKey(blk.ID()), database.EncodeBlock(blk))
}

// PutNodes stages trie node writes within the batch.
func (b *Batch) PutNodes(nodes map[trie.Hash]trie.Node) error {
	for hash, node := range nodes {
		if err := b.txn.Set(nodeKey(hash), trie.EncodeNode(node)); err != nil {
			return err
		}
	}
	return nil
}

// PutMeta stages a metadata write within the batch.
func (b *Batch) PutMeta(name string, value []byte) error {
	return b.txn.Set(metaKey(name), value)
}
