package p2p_test

import (
	"testing"
	"time"

	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/mempool"
	"github.com/coreledger/powchain/foundation/blockchain/p2p"
	"github.com/coreledger/powchain/foundation/blockchain/signature"
	"github.com/coreledger/powchain/foundation/blockchain/state"
	"github.com/coreledger/powchain/foundation/blockchain/storage"
)

// recordingReceiver stands in for a worker.Worker, recording blocks handed
// to it by the p2p layer for the test to observe.
type recordingReceiver struct {
	blocks chan database.Block
}

func newRecordingReceiver() *recordingReceiver {
	return &recordingReceiver{blocks: make(chan database.Block, 8)}
}

func (r *recordingReceiver) SubmitRemoteBlock(b database.Block) { r.blocks <- b }

func newNodeState(t *testing.T) *state.State {
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
	return s
}

func mineBlock(t *testing.T, block database.Block) database.Block {
	t.Helper()
	for nonce := uint64(0); ; nonce++ {
		block.Header.Nonce = nonce
		if block.ID().LessOrEqual(block.Header.Difficulty) {
			return block
		}
	}
}

func startNode(t *testing.T, addr string, s *state.State, pool *mempool.Mempool, recv *recordingReceiver) *p2p.Server {
	t.Helper()

	srv, err := p2p.New(p2p.Config{
		ListenAddr: addr,
		Chain:      s,
		Mempool:    pool,
		State:      s,
		Receiver:   recv,
	})
	if err != nil {
		t.Fatalf("constructing server: %s", err)
	}
	if err := srv.ListenAndServe(); err != nil {
		t.Fatalf("listening: %s", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func waitForPeers(t *testing.T, servers ...*p2p.Server) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for _, srv := range servers {
		for {
			if _, _, ok := srv.BestPeerHeight(); ok {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("timed out waiting for peer handshake")
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func Test_BroadcastBlockReachesConnectedPeer(t *testing.T) {
	stateA := newNodeState(t)
	poolA, err := mempool.New()
	if err != nil {
		t.Fatalf("constructing mempool: %s", err)
	}
	recvA := newRecordingReceiver()
	srvA := startNode(t, "127.0.0.1:18571", stateA, poolA, recvA)

	stateB := newNodeState(t)
	poolB, err := mempool.New()
	if err != nil {
		t.Fatalf("constructing mempool: %s", err)
	}
	recvB := newRecordingReceiver()
	srvB := startNode(t, "127.0.0.1:18572", stateB, poolB, recvB)

	go srvA.Dial("127.0.0.1:18572")
	waitForPeers(t, srvA, srvB)

	miner, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generating key pair: %s", err)
	}
	block, err := stateA.PrepareBlock(miner.Address(), 1, nil)
	if err != nil {
		t.Fatalf("preparing block: %s", err)
	}
	block = mineBlock(t, block)

	if result, err := stateA.InsertBlock(block); err != nil || result != state.Accepted {
		t.Fatalf("inserting block on node A: result=%v err=%v", result, err)
	}

	srvA.BroadcastBlock(block)

	select {
	case got := <-recvB.blocks:
		if got.ID() != block.ID() {
			t.Fatalf("expected block %s, got %s", block.ID(), got.ID())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for node B to receive the broadcast block")
	}
}

func Test_RequestBlocksPullsMissingChainFromPeer(t *testing.T) {
	stateA := newNodeState(t)
	poolA, err := mempool.New()
	if err != nil {
		t.Fatalf("constructing mempool: %s", err)
	}
	recvA := newRecordingReceiver()
	srvA := startNode(t, "127.0.0.1:18575", stateA, poolA, recvA)

	stateB := newNodeState(t)
	poolB, err := mempool.New()
	if err != nil {
		t.Fatalf("constructing mempool: %s", err)
	}
	recvB := newRecordingReceiver()
	srvB := startNode(t, "127.0.0.1:18576", stateB, poolB, recvB)

	go srvB.Dial("127.0.0.1:18575")
	waitForPeers(t, srvA, srvB)

	miner, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generating key pair: %s", err)
	}
	block, err := stateA.PrepareBlock(miner.Address(), 1, nil)
	if err != nil {
		t.Fatalf("preparing block: %s", err)
	}
	block = mineBlock(t, block)
	if result, err := stateA.InsertBlock(block); err != nil || result != state.Accepted {
		t.Fatalf("inserting block on node A: result=%v err=%v", result, err)
	}
	srvA.AnnounceHeight()

	bPeer, _, ok := srvB.BestPeerHeight()
	deadline := time.Now().Add(5 * time.Second)
	for ok {
		_, height, _ := stateB.Tip()
		if peerHeight := bPeer.Height(); peerHeight > height {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for node B to observe node A's new height")
		}
		time.Sleep(10 * time.Millisecond)
		bPeer, _, ok = srvB.BestPeerHeight()
	}
	if !ok {
		t.Fatal("node B lost its peer")
	}

	blocks, err := srvB.RequestBlocks(bPeer, 1)
	if err != nil {
		t.Fatalf("requesting blocks: %s", err)
	}
	if len(blocks) != 1 || blocks[0].ID() != block.ID() {
		t.Fatalf("expected to receive block %s, got %v", block.ID(), blocks)
	}

	if result, err := stateB.InsertBlock(blocks[0]); err != nil || result != state.Accepted {
		t.Fatalf("inserting synced block on node B: result=%v err=%v", result, err)
	}
}

func Test_TransactionRelayAdmitsIntoPeerMempool(t *testing.T) {
	stateA := newNodeState(t)
	poolA, err := mempool.New()
	if err != nil {
		t.Fatalf("constructing mempool: %s", err)
	}
	recvA := newRecordingReceiver()
	srvA := startNode(t, "127.0.0.1:18573", stateA, poolA, recvA)

	stateB := newNodeState(t)
	poolB, err := mempool.New()
	if err != nil {
		t.Fatalf("constructing mempool: %s", err)
	}
	recvB := newRecordingReceiver()
	srvB := startNode(t, "127.0.0.1:18574", stateB, poolB, recvB)

	go srvA.Dial("127.0.0.1:18574")
	waitForPeers(t, srvA, srvB)

	funder, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generating key pair: %s", err)
	}
	fundBlock, err := stateA.PrepareBlock(funder.Address(), 1, nil)
	if err != nil {
		t.Fatalf("preparing funding block: %s", err)
	}
	fundBlock = mineBlock(t, fundBlock)
	if result, err := stateA.InsertBlock(fundBlock); err != nil || result != state.Accepted {
		t.Fatalf("inserting funding block on node A: result=%v err=%v", result, err)
	}
	srvA.BroadcastBlock(fundBlock)

	select {
	case got := <-recvB.blocks:
		if result, err := stateB.InsertBlock(got); err != nil || result != state.Accepted {
			t.Fatalf("syncing funding block into node B: result=%v err=%v", result, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for node B to receive the funding block")
	}

	bob, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generating key pair: %s", err)
	}
	tx := database.NewUserTx(0, 1, 1, bob.Address(), database.NewBalance(7), nil).Sign(funder)

	if result, err := poolA.Insert(tx, stateA); err != nil || result != mempool.Added {
		t.Fatalf("inserting tx into node A's mempool: result=%v err=%v", result, err)
	}

	srvA.BroadcastTx(tx)

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := poolB.Get(tx.ID()); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for node B's mempool to admit the relayed transaction")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
