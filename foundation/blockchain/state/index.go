package state

import (
	"fmt"
	"math/big"

	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/storage"
	"github.com/coreledger/powchain/foundation/blockchain/wire"
)

// metaTip is the meta key holding the current tip block's ID.
const metaTip = "tip"

// indexKeyPrefix namespaces per-block index entries within meta storage,
// distinct from metaTip and any future named meta values.
const indexKeyPrefix = "idx:"

func indexKey(id database.Hash) string {
	return indexKeyPrefix + id.String()
}

// encodeIndexEntry renders a block's height and total difficulty so the
// in-memory index can be rebuilt after a restart without replaying every
// block's transactions.
func encodeIndexEntry(info blockInfo) []byte {
	w := wire.NewWriter()
	w.Uint64(info.Height)
	w.VarBytes(info.TotalDifficulty.Bytes())
	return w.Bytes()
}

// putIndexEntry stages a block's index entry in b, alongside whatever else
// the caller's batch covers.
func putIndexEntry(b *storage.Batch, id database.Hash, info blockInfo) error {
	return b.PutMeta(indexKey(id), encodeIndexEntry(info))
}

// loadIndexEntry reads back a persisted index entry, reconstructing the
// block's header from storage since the index entry itself only carries
// height and total difficulty.
func (s *State) loadIndexEntry(id database.Hash) (blockInfo, error) {
	block, ok, err := s.storage.GetBlock(id)
	if err != nil {
		return blockInfo{}, err
	}
	if !ok {
		return blockInfo{}, fmt.Errorf("state: block %s missing from storage", id)
	}

	raw, ok, err := s.storage.GetMeta(indexKey(id))
	if err != nil {
		return blockInfo{}, err
	}
	if !ok {
		return blockInfo{}, fmt.Errorf("state: index entry for block %s missing from storage", id)
	}

	r := wire.NewReader(raw)
	height, err := r.Uint64()
	if err != nil {
		return blockInfo{}, err
	}
	tdBytes, err := r.VarBytes()
	if err != nil {
		return blockInfo{}, err
	}

	return blockInfo{
		Header:          block.Header,
		Height:          height,
		TotalDifficulty: new(big.Int).SetBytes(tdBytes),
	}, nil
}
