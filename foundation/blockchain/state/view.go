package state

import (
	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/trie"
)

// View is a read-only snapshot of account state at a fixed trie root. It
// satisfies mempool.StateView.
type View struct {
	tr *trie.Trie
}

// newView wraps a trie rooted at root for read-only account lookups.
func newView(root database.Hash, store trie.Store) *View {
	return &View{tr: trie.New(root, store)}
}

// GetAccount returns the account at addr, or the zero-value account if
// addr has never been touched.
func (v *View) GetAccount(addr database.Address) (database.Account, error) {
	return v.tr.Get(addr)
}

// Root returns the state root this view is pinned to.
func (v *View) Root() database.Hash {
	return v.tr.Root()
}
