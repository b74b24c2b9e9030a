package database

import (
	"fmt"

	"github.com/coreledger/powchain/foundation/blockchain/merkle"
	"github.com/coreledger/powchain/foundation/blockchain/signature"
	"github.com/coreledger/powchain/foundation/blockchain/wire"
)

// BlockHeader carries everything needed to validate a block without its
// body: the fields are encoded and hashed in this order to produce the
// block ID.
type BlockHeader struct {
	Parent      Hash
	Nonce       uint64
	Difficulty  Hash // 256-bit PoW target; block_id must be <= this value.
	TimestampMs uint64
	MerkleRoot  Hash
	StateRoot   Hash
	Miner       Address // credited the block reward plus collected fees.
}

// Block is a header plus the ordered list of transactions it commits.
type Block struct {
	Header       BlockHeader
	Transactions []SignedTx
}

// NewBlock assembles an unmined block template: the merkle root is derived
// from trans, nonce starts at zero and is expected to be searched by the
// miner.
func NewBlock(parent Hash, difficulty Hash, timestampMs uint64, stateRoot Hash, miner Address, trans []SignedTx) Block {
	ids := make([]Hash, len(trans))
	for i, tx := range trans {
		ids[i] = tx.ID()
	}

	return Block{
		Header: BlockHeader{
			Parent:      parent,
			Nonce:       0,
			Difficulty:  difficulty,
			TimestampMs: timestampMs,
			MerkleRoot:  merkle.Root(ids),
			StateRoot:   stateRoot,
			Miner:       miner,
		},
		Transactions: trans,
	}
}

// encodeHeader appends the canonical encoding of the header, in field
// order, used both to compute the block ID and to persist/transmit blocks.
func (h BlockHeader) encode(w *wire.Writer) {
	w.FixedBytes(h.Parent[:])
	w.Uint64(h.Nonce)
	w.FixedBytes(h.Difficulty[:])
	w.Uint64(h.TimestampMs)
	w.FixedBytes(h.MerkleRoot[:])
	w.FixedBytes(h.StateRoot[:])
	w.FixedBytes(h.Miner[:])
}

// ID returns the block ID: the hash of the serialized header.
func (h BlockHeader) ID() Hash {
	w := wire.NewWriter()
	h.encode(w)
	return signature.Hash256(w.Bytes())
}

// ID returns the block's ID (the hash of its header).
func (b Block) ID() Hash {
	return b.Header.ID()
}

// String renders a short, log-friendly identifier for the block.
func (b Block) String() string {
	return fmt.Sprintf("%s (parent %s)", b.ID(), b.Header.Parent)
}

// EncodeBlock returns the canonical on-disk/wire encoding of a block: the
// header followed by its transactions, each length-prefixed.
func EncodeBlock(b Block) []byte {
	w := wire.NewWriter()
	b.Header.encode(w)
	w.Uint32(uint32(len(b.Transactions)))
	for _, tx := range b.Transactions {
		w.VarBytes(EncodeSignedTx(tx))
	}
	return w.Bytes()
}

// DecodeBlock parses the canonical encoding produced by EncodeBlock.
func DecodeBlock(data []byte) (Block, error) {
	r := wire.NewReader(data)

	var h BlockHeader
	var err error

	parent, err := r.FixedBytes(32)
	if err != nil {
		return Block{}, err
	}
	nonce, err := r.Uint64()
	if err != nil {
		return Block{}, err
	}
	difficulty, err := r.FixedBytes(32)
	if err != nil {
		return Block{}, err
	}
	ts, err := r.Uint64()
	if err != nil {
		return Block{}, err
	}
	merkleRoot, err := r.FixedBytes(32)
	if err != nil {
		return Block{}, err
	}
	stateRoot, err := r.FixedBytes(32)
	if err != nil {
		return Block{}, err
	}
	minerRaw, err := r.FixedBytes(signature.AddressLength)
	if err != nil {
		return Block{}, err
	}

	copy(h.Parent[:], parent)
	copy(h.Difficulty[:], difficulty)
	copy(h.MerkleRoot[:], merkleRoot)
	copy(h.StateRoot[:], stateRoot)
	copy(h.Miner[:], minerRaw)
	h.Nonce = nonce
	h.TimestampMs = ts

	count, err := r.Uint32()
	if err != nil {
		return Block{}, err
	}

	trans := make([]SignedTx, 0, count)
	for i := uint32(0); i < count; i++ {
		raw, err := r.VarBytes()
		if err != nil {
			return Block{}, err
		}
		tx, err := DecodeSignedTx(raw)
		if err != nil {
			return Block{}, err
		}
		trans = append(trans, tx)
	}

	return Block{Header: h, Transactions: trans}, nil
}
