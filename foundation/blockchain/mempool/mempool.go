// Package mempool maintains the pending-transaction pool the miner draws
// from and gossip replicates: deduplicated, nonce-ordered, and bounded.
package mempool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/mempool/selector"
)

// Capacity is the maximum number of transactions the pool holds at once.
const Capacity = 4096

// FutureNonceWindow bounds how far ahead of an account's current nonce a
// transaction may sit before it is rejected outright.
const FutureNonceWindow = 16

// Result reports the outcome of Insert.
type Result int

// The possible outcomes of Insert.
const (
	Added Result = iota
	Duplicate
	Invalid
	Replaced
)

// String renders Result for logging.
func (r Result) String() string {
	switch r {
	case Added:
		return "added"
	case Duplicate:
		return "duplicate"
	case Invalid:
		return "invalid"
	case Replaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// StateView is the read-only account lookup the mempool needs from the
// Chain & State Engine to admit and select transactions.
type StateView interface {
	GetAccount(addr database.Address) (database.Account, error)
}

// entry wraps a pooled transaction with its arrival order, used to break
// eviction ties in favor of the oldest transaction.
type entry struct {
	tx  database.SignedTx
	seq uint64
}

func key(from database.Address, nonce uint64) string {
	return fmt.Sprintf("%s:%d", from, nonce)
}

// Mempool is a concurrency-safe, capacity-bounded transaction pool.
type Mempool struct {
	mu       sync.RWMutex
	pool     map[string]entry
	byID     map[database.Hash]string
	nextSeq  uint64
	selectFn selector.Func
}

// New constructs an empty mempool using the core's gas-price selection
// strategy.
func New() (*Mempool, error) {
	selectFn, err := selector.Retrieve(selector.StrategyGasPrice)
	if err != nil {
		return nil, err
	}

	return &Mempool{
		pool:     make(map[string]entry),
		byID:     make(map[database.Hash]string),
		selectFn: selectFn,
	}, nil
}

// Count returns the number of transactions currently pooled.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return len(mp.pool)
}

// Insert admits tx into the pool against the given state snapshot.
func (mp *Mempool) Insert(tx database.SignedTx, state StateView) (Result, error) {
	if err := tx.VerifySignature(); err != nil {
		return Invalid, nil
	}

	account, err := state.GetAccount(tx.From)
	if err != nil {
		return Invalid, err
	}

	if tx.Nonce < account.Nonce {
		return Invalid, nil
	}
	if tx.Nonce > account.Nonce+FutureNonceWindow {
		return Invalid, nil
	}
	if account.Balance.Cmp(tx.TotalCost()) < 0 {
		return Invalid, nil
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	k := key(tx.From, tx.Nonce)
	if _, exists := mp.pool[k]; exists {
		// First-seen wins: replace-by-nonce is not supported in the core.
		return Duplicate, nil
	}

	mp.pool[k] = entry{tx: tx, seq: mp.nextSeq}
	mp.byID[tx.ID()] = k
	mp.nextSeq++

	if len(mp.pool) > Capacity {
		mp.evictLowestGasPriceLocked()
	}

	return Added, nil
}

// evictLowestGasPriceLocked drops the pooled transaction with the lowest
// gas_price, breaking ties by oldest arrival. Caller must hold mp.mu.
func (mp *Mempool) evictLowestGasPriceLocked() {
	var victimKey string
	var victim entry
	first := true

	for k, e := range mp.pool {
		if first {
			victimKey, victim, first = k, e, false
			continue
		}
		if e.tx.GasPrice < victim.tx.GasPrice ||
			(e.tx.GasPrice == victim.tx.GasPrice && e.seq < victim.seq) {
			victimKey, victim = k, e
		}
	}

	if !first {
		delete(mp.pool, victimKey)
		delete(mp.byID, victim.tx.ID())
	}
}

// Get returns the pooled transaction with the given ID, used to serve a
// peer's GetTransactions request.
func (mp *Mempool) Get(id database.Hash) (database.SignedTx, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	k, ok := mp.byID[id]
	if !ok {
		return database.SignedTx{}, false
	}
	return mp.pool[k].tx, true
}

// Remove drops the transaction with the given ID, if present.
func (mp *Mempool) Remove(id database.Hash) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	k, ok := mp.byID[id]
	if !ok {
		return
	}
	delete(mp.pool, k)
	delete(mp.byID, id)
}

// EvictStale removes every pooled transaction whose nonce has fallen behind
// its sender's current account nonce under state — transactions a
// previously committed block has already superseded.
func (mp *Mempool) EvictStale(state StateView) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for k, e := range mp.pool {
		account, err := state.GetAccount(e.tx.From)
		if err != nil {
			return err
		}
		if e.tx.Nonce < account.Nonce {
			delete(mp.pool, k)
			delete(mp.byID, e.tx.ID())
		}
	}
	return nil
}

// Truncate clears every pooled transaction.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.pool = make(map[string]entry)
	mp.byID = make(map[database.Hash]string)
}

// Take selects up to howMany transactions for the next block: greedy by
// gas_price, then by (sender, nonce ascending), excluding any sender's
// transactions past the first gap in its nonce sequence relative to state.
// howMany of -1 returns every eligible transaction.
func (mp *Mempool) Take(howMany int, state StateView) ([]database.SignedTx, error) {
	grouped := make(map[database.Address][]database.SignedTx)

	mp.mu.RLock()
	for _, e := range mp.pool {
		grouped[e.tx.From] = append(grouped[e.tx.From], e.tx)
	}
	mp.mu.RUnlock()

	for addr, txs := range grouped {
		account, err := state.GetAccount(addr)
		if err != nil {
			return nil, err
		}

		sort.Slice(txs, func(i, j int) bool { return txs[i].Nonce < txs[j].Nonce })

		expected := account.Nonce
		contiguous := txs[:0:0]
		for _, tx := range txs {
			if tx.Nonce != expected {
				break
			}
			contiguous = append(contiguous, tx)
			expected++
		}
		if len(contiguous) == 0 {
			delete(grouped, addr)
			continue
		}
		grouped[addr] = contiguous
	}

	return mp.selectFn(grouped, howMany), nil
}
