// Package genesis defines the hard-coded genesis block every node in the
// network must independently derive to the same ID. Unlike a genesis file
// loaded from disk, constants guarantee two nodes built from the same
// binary agree on genesis without sharing a filesystem.
package genesis

import (
	"math/big"

	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/signature"
	"github.com/coreledger/powchain/foundation/blockchain/trie"
)

// GodAddressHex is the single pre-funded account at genesis.
const GodAddressHex = "67d39da22d106b686c4f301b6f357600d28fc104"

// GodBalanceShift is the power-of-two balance credited to the god address:
// 2^60.
const GodBalanceShift = 60

// MiningReward is the coinbase value credited to a block's miner on top of
// the fixed fees it collects, a feature absent from the flat-fee core but
// present in the reference miner this system was distilled from.
const MiningReward uint64 = 50

// TimestampMs is the genesis block's fixed timestamp.
const TimestampMs uint64 = 0

// GodAddress parses GodAddressHex into an Address. It panics on failure
// since the constant is fixed at compile time and must always parse.
func GodAddress() database.Address {
	addr, err := ParseAddress(GodAddressHex)
	if err != nil {
		panic("genesis: invalid god address constant: " + err.Error())
	}
	return addr
}

// ParseAddress decodes a 40-character hex string into an Address.
func ParseAddress(hexStr string) (database.Address, error) {
	var addr database.Address
	raw, ok := new(big.Int).SetString(hexStr, 16)
	if !ok {
		return addr, errInvalidAddress(hexStr)
	}
	b := raw.Bytes()
	// Left-pad: big.Int.Bytes() drops leading zero bytes.
	copy(addr[signature.AddressLength-len(b):], b)
	return addr, nil
}

type errInvalidAddress string

func (e errInvalidAddress) Error() string {
	return "genesis: invalid address hex: " + string(e)
}

// GodBalance returns the pre-funded god address balance: 2^60.
func GodBalance() *database.Balance {
	bal := database.NewBalance(1)
	for i := 0; i < GodBalanceShift; i++ {
		bal = database.AddBalance(bal, bal)
	}
	return bal
}

// Difficulty is the fixed genesis PoW target: the top 16 bits are zero and
// every bit below that is one, i.e. a high-bit-16 target as described in
// the genesis specification. Blocks must hash to at or below this value to
// be valid under the constant difficulty rule.
func Difficulty() database.Hash {
	var h database.Hash
	for i := range h {
		h[i] = 0xff
	}
	h[0] = 0x00
	h[1] = 0x00
	return h
}

// Seed materializes the genesis state trie into store and returns the
// genesis block, for use by a node booting from empty storage.
func Seed(store trie.Store) (database.Block, error) {
	tr := trie.New(trie.EmptyRoot(), store)
	acc := database.Account{Nonce: 0, Balance: GodBalance()}
	root, err := tr.Set(GodAddress(), acc)
	if err != nil {
		return database.Block{}, err
	}

	return database.Block{
		Header: database.BlockHeader{
			Parent:      database.Hash{},
			Nonce:       0,
			Difficulty:  Difficulty(),
			TimestampMs: TimestampMs,
			MerkleRoot:  database.Hash{},
			StateRoot:   root,
		},
	}, nil
}
