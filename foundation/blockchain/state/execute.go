package state

import (
	"errors"

	"github.com/coreledger/powchain/foundation/blockchain/chainerr"
	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/genesis"
	"github.com/coreledger/powchain/foundation/blockchain/trie"
)

// Validation errors returned by execute, wrapped with context by callers.
var (
	ErrBadSignature      = errors.New("transaction signature invalid")
	ErrNonceMismatch     = errors.New("transaction nonce does not match account nonce")
	ErrInsufficientFunds = errors.New("account balance insufficient for transaction cost")
)

// execute applies every transaction in trans in order against the trie
// rooted at parentStateRoot, then credits miner the block reward plus the
// fixed fees collected along the way. It returns the resulting state root
// and every trie node the execution produced, buffered in memory rather
// than persisted to store: the caller commits them atomically alongside
// the block itself only once the state root has been checked against the
// header, so a block that fails validation after execution never leaves
// orphaned nodes in storage. A failing transaction aborts the whole
// block: no partial execution is committed.
func execute(parentStateRoot database.Hash, store trie.Store, trans []database.SignedTx, miner database.Address) (database.Hash, map[trie.Hash]trie.Node, error) {
	buf := trie.NewBufferedStore(store)
	tr := trie.New(parentStateRoot, buf)

	var collectedFees uint64

	for _, tx := range trans {
		if err := tx.VerifySignature(); err != nil {
			return database.Hash{}, nil, chainerr.Wrap(chainerr.Crypto, ErrBadSignature)
		}

		fromAcc, err := tr.Get(tx.From)
		if err != nil {
			return database.Hash{}, nil, err
		}

		if tx.Nonce != fromAcc.Nonce {
			return database.Hash{}, nil, ErrNonceMismatch
		}

		cost := tx.TotalCost()
		if fromAcc.Balance.Cmp(cost) < 0 {
			return database.Hash{}, nil, ErrInsufficientFunds
		}

		fromAcc.Balance = database.SubBalance(fromAcc.Balance, cost)
		fromAcc.Nonce++

		var updates []trie.Update
		if tx.To == tx.From {
			// Self-send: only the fixed fee leaves the account net of the
			// already-applied debit; crediting a second, stale read of the
			// same account would silently undo that debit.
			fromAcc.Balance = database.AddBalance(fromAcc.Balance, tx.Value)
			updates = []trie.Update{{Address: tx.From, Account: fromAcc}}
		} else {
			toAcc, err := tr.Get(tx.To)
			if err != nil {
				return database.Hash{}, nil, err
			}
			toAcc.Balance = database.AddBalance(toAcc.Balance, tx.Value)
			updates = []trie.Update{
				{Address: tx.From, Account: fromAcc},
				{Address: tx.To, Account: toAcc},
			}
		}
		root, err := tr.InsertBatch(updates)
		if err != nil {
			return database.Hash{}, nil, err
		}
		tr = trie.New(root, buf)

		collectedFees += database.FixedFee
	}

	minerAcc, err := tr.Get(miner)
	if err != nil {
		return database.Hash{}, nil, err
	}
	reward := database.AddBalance(database.NewBalance(genesis.MiningReward), database.NewBalance(collectedFees))
	minerAcc.Balance = database.AddBalance(minerAcc.Balance, reward)

	root, err := tr.Set(miner, minerAcc)
	if err != nil {
		return database.Hash{}, nil, err
	}

	return root, buf.Pending(), nil
}
