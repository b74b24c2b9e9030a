package selector

import (
	"sort"

	"github.com/coreledger/powchain/foundation/blockchain/database"
)

// gasPriceSelect greedily prefers the highest gas_price while respecting
// nonce order within each sender: every sender's lowest remaining nonce is
// offered in the same round, rounds are sorted by gas_price, and rounds are
// consumed until howMany transactions have been picked.
var gasPriceSelect = func(m map[database.Address][]database.SignedTx, howMany int) []database.SignedTx {

	// Sort each sender's transactions by nonce so row 0 is always that
	// sender's next transaction in processing order.
	for key := range m {
		if len(m[key]) > 1 {
			sort.Sort(byNonce(m[key]))
		}
	}

	// Build rounds: round i takes the i-th transaction of every sender that
	// still has one, in the same pass, so that gas_price comparisons at a
	// given round never jump a sender ahead of its own earlier nonce.
	var rounds [][]database.SignedTx
	for {
		var round []database.SignedTx
		for key := range m {
			if len(m[key]) > 0 {
				round = append(round, m[key][0])
				m[key] = m[key][1:]
			}
		}
		if round == nil {
			break
		}
		rounds = append(rounds, round)
	}

	final := []database.SignedTx{}
done:
	for _, round := range rounds {
		need := howMany
		if need >= 0 {
			need -= len(final)
		}
		if need >= 0 && len(round) > need {
			sort.Sort(byGasPrice(round))
			final = append(final, round[:need]...)
			break done
		}
		sort.Sort(byGasPrice(round))
		final = append(final, round...)
	}

	return final
}
