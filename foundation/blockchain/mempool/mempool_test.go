package mempool_test

import (
	"testing"

	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/mempool"
	"github.com/coreledger/powchain/foundation/blockchain/signature"
)

type fakeState struct {
	accounts map[database.Address]database.Account
}

func newFakeState() *fakeState {
	return &fakeState{accounts: make(map[database.Address]database.Account)}
}

func (f *fakeState) GetAccount(addr database.Address) (database.Account, error) {
	if acc, ok := f.accounts[addr]; ok {
		return acc, nil
	}
	return database.NewAccount(), nil
}

func mustKeyPair(t *testing.T) signature.KeyPair {
	t.Helper()
	kp, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generating key pair: %v", err)
	}
	return kp
}

func signTx(kp signature.KeyPair, nonce, gasPrice uint64, to database.Address, value uint64) database.SignedTx {
	utx := database.NewUserTx(nonce, gasPrice, 21000, to, database.NewBalance(value), nil)
	return utx.Sign(kp)
}

func Test_InsertValidTransactionSucceeds(t *testing.T) {
	mp, err := mempool.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	kp := mustKeyPair(t)
	state := newFakeState()
	state.accounts[kp.Address()] = database.Account{Nonce: 0, Balance: database.NewBalance(1000)}

	tx := signTx(kp, 0, 5, signature.Address{1}, 10)
	res, err := mp.Insert(tx, state)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if res != mempool.Added {
		t.Fatalf("expected Added, got %s", res)
	}
	if mp.Count() != 1 {
		t.Fatalf("expected 1 pooled transaction, got %d", mp.Count())
	}
}

func Test_InsertDuplicateNonceRejected(t *testing.T) {
	mp, _ := mempool.New()
	kp := mustKeyPair(t)
	state := newFakeState()
	state.accounts[kp.Address()] = database.Account{Nonce: 0, Balance: database.NewBalance(1000)}

	tx1 := signTx(kp, 0, 5, signature.Address{1}, 10)
	tx2 := signTx(kp, 0, 9, signature.Address{2}, 20)

	if res, _ := mp.Insert(tx1, state); res != mempool.Added {
		t.Fatalf("expected first insert to be Added")
	}
	res, err := mp.Insert(tx2, state)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if res != mempool.Duplicate {
		t.Fatalf("expected Duplicate for a second tx at the same nonce, got %s", res)
	}
	if mp.Count() != 1 {
		t.Fatalf("first-seen tx should still be the only pooled entry")
	}
}

func Test_InsertInsufficientBalanceRejected(t *testing.T) {
	mp, _ := mempool.New()
	kp := mustKeyPair(t)
	state := newFakeState()
	state.accounts[kp.Address()] = database.Account{Nonce: 0, Balance: database.NewBalance(5)}

	tx := signTx(kp, 0, 5, signature.Address{1}, 100)
	res, err := mp.Insert(tx, state)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if res != mempool.Invalid {
		t.Fatalf("expected Invalid for undercollateralized tx, got %s", res)
	}
}

func Test_InsertFarFutureNonceRejected(t *testing.T) {
	mp, _ := mempool.New()
	kp := mustKeyPair(t)
	state := newFakeState()
	state.accounts[kp.Address()] = database.Account{Nonce: 0, Balance: database.NewBalance(1000)}

	tx := signTx(kp, mempool.FutureNonceWindow+1, 5, signature.Address{1}, 10)
	res, err := mp.Insert(tx, state)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if res != mempool.Invalid {
		t.Fatalf("expected Invalid for a nonce beyond the future window, got %s", res)
	}
}

func Test_TakeRespectsNonceContiguity(t *testing.T) {
	mp, _ := mempool.New()
	kp := mustKeyPair(t)
	state := newFakeState()
	state.accounts[kp.Address()] = database.Account{Nonce: 0, Balance: database.NewBalance(1000)}

	tx0 := signTx(kp, 0, 5, signature.Address{1}, 10)
	tx2 := signTx(kp, 2, 50, signature.Address{1}, 10) // gap at nonce 1

	mp.Insert(tx0, state)
	mp.Insert(tx2, state)

	picked, err := mp.Take(-1, state)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if len(picked) != 1 || picked[0].Nonce != 0 {
		t.Fatalf("expected only the contiguous nonce-0 tx, got %+v", picked)
	}
}

func Test_TakePrefersHigherGasPrice(t *testing.T) {
	mp, _ := mempool.New()
	kpA := mustKeyPair(t)
	kpB := mustKeyPair(t)
	state := newFakeState()
	state.accounts[kpA.Address()] = database.Account{Nonce: 0, Balance: database.NewBalance(1000)}
	state.accounts[kpB.Address()] = database.Account{Nonce: 0, Balance: database.NewBalance(1000)}

	low := signTx(kpA, 0, 1, signature.Address{1}, 10)
	high := signTx(kpB, 0, 100, signature.Address{1}, 10)

	mp.Insert(low, state)
	mp.Insert(high, state)

	picked, err := mp.Take(1, state)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if len(picked) != 1 || picked[0].GasPrice != 100 {
		t.Fatalf("expected the higher gas_price tx to be picked first, got %+v", picked)
	}
}

func Test_RemoveDropsTransaction(t *testing.T) {
	mp, _ := mempool.New()
	kp := mustKeyPair(t)
	state := newFakeState()
	state.accounts[kp.Address()] = database.Account{Nonce: 0, Balance: database.NewBalance(1000)}

	tx := signTx(kp, 0, 5, signature.Address{1}, 10)
	mp.Insert(tx, state)
	mp.Remove(tx.ID())

	if mp.Count() != 0 {
		t.Fatalf("expected pool to be empty after Remove")
	}
}

func Test_EvictStaleRemovesSupersededNonce(t *testing.T) {
	mp, _ := mempool.New()
	kp := mustKeyPair(t)
	state := newFakeState()
	state.accounts[kp.Address()] = database.Account{Nonce: 0, Balance: database.NewBalance(1000)}

	tx := signTx(kp, 0, 5, signature.Address{1}, 10)
	mp.Insert(tx, state)

	state.accounts[kp.Address()] = database.Account{Nonce: 1, Balance: database.NewBalance(990)}
	if err := mp.EvictStale(state); err != nil {
		t.Fatalf("EvictStale: %v", err)
	}
	if mp.Count() != 0 {
		t.Fatalf("expected stale nonce-0 tx to be evicted once account nonce advanced")
	}
}

func Test_CapacityEvictsLowestGasPrice(t *testing.T) {
	mp, _ := mempool.New()
	state := newFakeState()

	var lowestID database.Hash
	for i := 0; i < mempool.Capacity+1; i++ {
		kp := mustKeyPair(t)
		state.accounts[kp.Address()] = database.Account{Nonce: 0, Balance: database.NewBalance(1000)}
		gasPrice := uint64(i + 1)
		tx := signTx(kp, 0, gasPrice, signature.Address{1}, 1)
		if i == 0 {
			lowestID = tx.ID()
		}
		if _, err := mp.Insert(tx, state); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	if mp.Count() != mempool.Capacity {
		t.Fatalf("expected pool capped at %d, got %d", mempool.Capacity, mp.Count())
	}
	if _, ok := mp.Get(lowestID); ok {
		t.Fatalf("expected the lowest gas_price tx to be evicted")
	}
}
