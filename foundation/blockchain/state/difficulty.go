package state

import (
	"math/big"

	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/genesis"
)

// maxHash is 2^256 - 1, the full range of a 256-bit hash, used to convert a
// difficulty target into a measure of expected work.
var maxHash = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// DifficultyRule returns the PoW target a child of parent must satisfy.
// The core uses a constant difficulty fixed at genesis (spec's simplest
// documented option), rather than the windowed-ratio adaptive rule.
func DifficultyRule(parent database.BlockHeader) database.Hash {
	return genesis.Difficulty()
}

// work converts a difficulty target into its expected-hashes-to-solve
// weight: maxHash / difficulty. A target of zero is never legitimately
// reachable; to avoid a division by zero it is given weight maxHash, the
// same weight as a target of one.
func work(difficulty database.Hash) *big.Int {
	target := new(big.Int).SetBytes(difficulty[:])
	if target.Sign() == 0 {
		return new(big.Int).Set(maxHash)
	}
	return new(big.Int).Div(maxHash, target)
}
