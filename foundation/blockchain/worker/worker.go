// Package worker runs the background goroutines a node needs once its
// Chain & State Engine and mempool are up: searching for proof-of-work
// solutions, gossiping newly mined blocks and transactions, and syncing
// against peers.
package worker

import (
	"os"
	"sync"
	"time"

	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/mempool"
	"github.com/coreledger/powchain/foundation/blockchain/peer"
	"github.com/coreledger/powchain/foundation/blockchain/state"
)

// peerUpdateInterval is how often the sync loop re-checks peer heights.
const peerUpdateInterval = 10 * time.Second

// maxTxShareRequests bounds the outstanding transaction-gossip queue; once
// full, further share requests are dropped rather than blocking the
// submitter.
const maxTxShareRequests = 256

// Broadcaster is the network surface the worker needs from the p2p layer.
// It is satisfied by *p2p.Server; kept as an interface here so the worker
// package doesn't import p2p (and p2p doesn't import worker either).
type Broadcaster interface {
	BroadcastBlock(database.Block)
	BroadcastTx(database.SignedTx)
	BestPeerHeight() (*peer.Peer, uint64, bool)
	RequestBlocks(p *peer.Peer, fromHeight uint64) ([]database.Block, error)
}

// Config wires a Worker to the engine, pool, network, and miner identity it
// operates on.
type Config struct {
	State     *state.State
	Mempool   *mempool.Mempool
	Net       Broadcaster
	Miner     database.Address
	EvHandler state.EventHandler
}

// Worker manages the mining, gossip, and sync goroutines for a node.
type Worker struct {
	state  *state.State
	pool   *mempool.Mempool
	net    Broadcaster
	miner  database.Address
	evH    state.EventHandler
	ticker *time.Ticker
	shut   chan struct{}
	wg     sync.WaitGroup

	startMining  chan bool
	cancelMining chan bool
	txSharing    chan database.SignedTx
	blockIn      chan database.Block

	miningMu      sync.Mutex
	miningEnabled bool
}

// Run constructs a Worker and starts its background goroutines, blocking
// until all of them have reported running.
func Run(cfg Config) *Worker {
	evH := cfg.EvHandler
	if evH == nil {
		evH = func(string, ...any) {}
	}

	w := &Worker{
		state:         cfg.State,
		pool:          cfg.Mempool,
		net:           cfg.Net,
		miner:         cfg.Miner,
		evH:           evH,
		ticker:        time.NewTicker(peerUpdateInterval),
		shut:          make(chan struct{}),
		startMining:   make(chan bool, 1),
		cancelMining:  make(chan bool, 1),
		txSharing:     make(chan database.SignedTx, maxTxShareRequests),
		blockIn:       make(chan database.Block, maxTxShareRequests),
		miningEnabled: true,
	}

	operations := []func(){
		w.syncOperations,
		w.miningOperations,
		w.shareTxOperations,
		w.blockIngestOperations,
	}

	w.wg.Add(len(operations))
	started := make(chan struct{})
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			started <- struct{}{}
			op()
		}(op)
	}
	for range operations {
		<-started
	}

	return w
}

// Shutdown stops every background goroutine and waits for them to exit.
func (w *Worker) Shutdown() {
	w.evH("worker: shutdown: started")
	defer w.evH("worker: shutdown: completed")

	w.ticker.Stop()
	w.SignalCancelMining()
	close(w.shut)
	w.wg.Wait()
}

// SignalStartMining requests a mining attempt. Redundant signals while one
// is already pending are dropped.
func (w *Worker) SignalStartMining() {
	if !w.MiningAllowed() {
		return
	}
	select {
	case w.startMining <- true:
	default:
	}
}

// SignalCancelMining interrupts an in-flight mining attempt, used when a
// better block arrives from a peer and the current attempt would be wasted
// work.
func (w *Worker) SignalCancelMining() {
	select {
	case w.cancelMining <- true:
	default:
	}
}

// SignalShareTx queues tx for gossip to peers. If the queue is full, the
// request is dropped; gossip is best-effort, not delivery-guaranteed.
func (w *Worker) SignalShareTx(tx database.SignedTx) {
	select {
	case w.txSharing <- tx:
	default:
		w.evH("worker: SignalShareTx: queue full, dropping")
	}
}

// SubmitRemoteBlock queues a block received from a peer for validation and
// insertion on the block-ingest goroutine, keeping that work off whatever
// connection goroutine received it.
func (w *Worker) SubmitRemoteBlock(block database.Block) {
	select {
	case w.blockIn <- block:
	default:
		w.evH("worker: SubmitRemoteBlock: queue full, dropping block %s", block.ID())
	}
}

// EnableMining turns automatic mining on or off; the control-plane API's
// miner_start/miner_stop operations call this.
func (w *Worker) EnableMining(enabled bool) {
	w.miningMu.Lock()
	w.miningEnabled = enabled
	w.miningMu.Unlock()

	if enabled {
		w.SignalStartMining()
	} else {
		w.SignalCancelMining()
	}
}

// MiningAllowed reports whether automatic mining is currently enabled.
func (w *Worker) MiningAllowed() bool {
	w.miningMu.Lock()
	defer w.miningMu.Unlock()
	return w.miningEnabled
}

// abortOnStorageFailure ends the process when InsertBlock reports that
// storage broke under an already-valid block: the in-memory index and disk
// may now disagree, and nothing built on top of this State can be trusted.
// Validation failures never reach here; only state.StorageFailure does.
func (w *Worker) abortOnStorageFailure(blockID database.Hash, err error) {
	w.evH("worker: FATAL: storage failed committing block %s: %s", blockID, err)
	os.Exit(1)
}

func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
