package worker_test

import (
	"testing"
	"time"

	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/genesis"
	"github.com/coreledger/powchain/foundation/blockchain/mempool"
	"github.com/coreledger/powchain/foundation/blockchain/peer"
	"github.com/coreledger/powchain/foundation/blockchain/signature"
	"github.com/coreledger/powchain/foundation/blockchain/state"
	"github.com/coreledger/powchain/foundation/blockchain/storage"
	"github.com/coreledger/powchain/foundation/blockchain/worker"
)

// fakeNet is a no-op Broadcaster that records mined blocks for the test to
// observe, standing in for the p2p layer.
type fakeNet struct {
	mined chan database.Block
}

func newFakeNet() *fakeNet {
	return &fakeNet{mined: make(chan database.Block, 8)}
}

func (f *fakeNet) BroadcastBlock(b database.Block) { f.mined <- b }
func (f *fakeNet) BroadcastTx(database.SignedTx)   {}
func (f *fakeNet) BestPeerHeight() (*peer.Peer, uint64, bool) {
	return nil, 0, false
}
func (f *fakeNet) RequestBlocks(*peer.Peer, uint64) ([]database.Block, error) {
	return nil, nil
}

func mine(t *testing.T, block database.Block) database.Block {
	t.Helper()
	for nonce := uint64(0); ; nonce++ {
		block.Header.Nonce = nonce
		if block.ID().LessOrEqual(block.Header.Difficulty) {
			return block
		}
	}
}

func newFundedState(t *testing.T) (*state.State, signature.KeyPair) {
	t.Helper()

	dir := t.TempDir()
	strg, err := storage.Open(dir)
	if err != nil {
		t.Fatalf("opening storage: %s", err)
	}
	t.Cleanup(func() { strg.Close() })

	s, err := state.New(state.Config{Storage: strg})
	if err != nil {
		t.Fatalf("constructing state: %s", err)
	}

	funder, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generating key pair: %s", err)
	}

	block, err := s.PrepareBlock(funder.Address(), 1, nil)
	if err != nil {
		t.Fatalf("preparing funding block: %s", err)
	}
	block = mine(t, block)

	if result, err := s.InsertBlock(block); err != nil || result != state.Accepted {
		t.Fatalf("inserting funding block: result=%v err=%v", result, err)
	}

	return s, funder
}

func Test_WorkerMinesQueuedTransaction(t *testing.T) {
	s, funder := newFundedState(t)

	pool, err := mempool.New()
	if err != nil {
		t.Fatalf("constructing mempool: %s", err)
	}
	bob, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generating key pair: %s", err)
	}

	tx := database.NewUserTx(0, 1, 1, bob.Address(), database.NewBalance(5), nil).Sign(funder)
	if result, err := pool.Insert(tx, s); err != nil || result != mempool.Added {
		t.Fatalf("inserting tx into mempool: result=%v err=%v", result, err)
	}

	net := newFakeNet()
	w := worker.Run(worker.Config{
		State:   s,
		Mempool: pool,
		Net:     net,
		Miner:   funder.Address(),
	})
	defer w.Shutdown()

	w.SignalStartMining()

	select {
	case block := <-net.mined:
		if len(block.Transactions) != 1 {
			t.Fatalf("expected 1 transaction in mined block, got %d", len(block.Transactions))
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for worker to mine a block")
	}

	bobAcc, err := s.GetAccount(bob.Address())
	if err != nil {
		t.Fatalf("reading bob account: %s", err)
	}
	if bobAcc.Balance.Cmp(database.NewBalance(5)) != 0 {
		t.Fatalf("expected bob balance 5, got %s", bobAcc.Balance)
	}
}

func Test_EnableMiningGatesSignalStartMining(t *testing.T) {
	s, _ := newFundedState(t)
	pool, err := mempool.New()
	if err != nil {
		t.Fatalf("constructing mempool: %s", err)
	}
	net := newFakeNet()

	w := worker.Run(worker.Config{
		State:   s,
		Mempool: pool,
		Net:     net,
		Miner:   genesis.GodAddress(),
	})
	defer w.Shutdown()

	w.EnableMining(false)
	if w.MiningAllowed() {
		t.Fatalf("expected mining to be disallowed after EnableMining(false)")
	}

	w.EnableMining(true)
	if !w.MiningAllowed() {
		t.Fatalf("expected mining to be allowed after EnableMining(true)")
	}
}
