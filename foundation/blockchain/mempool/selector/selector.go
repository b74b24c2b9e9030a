// Package selector provides transaction-selection algorithms for turning a
// mempool snapshot into an ordered list of transactions for the next block.
package selector

import (
	"fmt"

	"github.com/coreledger/powchain/foundation/blockchain/database"
)

// StrategyGasPrice is the only selection strategy in the core: greedy by
// gas_price, with transactions from the same sender ordered by ascending
// nonce.
const StrategyGasPrice = "gas_price"

var strategies = map[string]Func{
	StrategyGasPrice: gasPriceSelect,
}

// Func selects howMany transactions from transactions, which is grouped by
// sender and, per sender, already trimmed to a contiguous nonce run starting
// at that sender's expected next nonce. Implementations must preserve each
// sender's relative nonce order. Receiving -1 for howMany returns every
// transaction in the strategy's ordering.
type Func func(transactions map[database.Address][]database.SignedTx, howMany int) []database.SignedTx

// Retrieve returns the named selection strategy.
func Retrieve(strategy string) (Func, error) {
	fn, ok := strategies[strategy]
	if !ok {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// byNonce sorts transactions by ascending nonce, preserving per-sender
// processing order.
type byNonce []database.SignedTx

func (s byNonce) Len() int           { return len(s) }
func (s byNonce) Less(i, j int) bool { return s[i].Nonce < s[j].Nonce }
func (s byNonce) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// byGasPrice sorts transactions by descending gas_price, the tie-break used
// when multiple senders compete for the same selection slot.
type byGasPrice []database.SignedTx

func (s byGasPrice) Len() int           { return len(s) }
func (s byGasPrice) Less(i, j int) bool { return s[i].GasPrice > s[j].GasPrice }
func (s byGasPrice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
