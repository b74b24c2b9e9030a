package worker

import (
	"context"
	"sync"
	"time"

	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/state"
)

// cancelCheckInterval is how many nonce attempts pass between checks of the
// cancellation signal and a refresh of the block's timestamp, grounded on
// the reference miner's own periodic checks during its nonce loop.
const cancelCheckInterval = 1 << 20

// miningOperations waits for a start signal and runs one attempt at a time;
// a shutdown or cancel signal interrupts whatever attempt is in flight.
func (w *Worker) miningOperations() {
	w.evH("worker: miningOperations: started")
	defer w.evH("worker: miningOperations: completed")

	for {
		select {
		case <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation()
			}
		case <-w.shut:
			return
		}
	}
}

// runMiningOperation selects transactions from the mempool, assembles a
// candidate block, and searches for a solving nonce, re-signaling itself if
// the mempool still has work once it finishes.
func (w *Worker) runMiningOperation() {
	w.evH("worker: runMiningOperation: started")
	defer w.evH("worker: runMiningOperation: completed")

	if !w.MiningAllowed() {
		return
	}

	if w.pool.Count() == 0 {
		w.evH("worker: runMiningOperation: no transactions to mine")
		return
	}

	defer func() {
		if w.pool.Count() > 0 {
			w.SignalStartMining()
		}
	}()

	select {
	case <-w.cancelMining:
	default:
	}

	trans, err := w.pool.Take(1024, w.state)
	if err != nil {
		w.evH("worker: runMiningOperation: ERROR: selecting transactions: %s", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()
		select {
		case <-w.cancelMining:
			w.evH("worker: runMiningOperation: cancel requested")
		case <-ctx.Done():
		}
	}()

	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		block, err := w.mine(ctx, trans)
		if err != nil {
			if ctx.Err() != nil {
				w.evH("worker: runMiningOperation: cancelled")
			} else {
				w.evH("worker: runMiningOperation: ERROR: %s", err)
			}
			return
		}

		result, err := w.state.InsertBlock(block)
		if err != nil {
			if result == state.StorageFailure {
				w.abortOnStorageFailure(block.ID(), err)
			}
			w.evH("worker: runMiningOperation: ERROR: inserting mined block: %s", err)
			return
		}
		if result != state.Accepted {
			w.evH("worker: runMiningOperation: mined block not accepted: %s", result)
			return
		}

		for _, tx := range trans {
			w.pool.Remove(tx.ID())
		}

		w.evH("worker: runMiningOperation: mined block %s", block.ID())
		w.net.BroadcastBlock(block)
	}()

	wg.Wait()
}

// mine searches for a nonce solving block's proof of work, refreshing the
// timestamp and checking for cancellation every cancelCheckInterval
// attempts.
func (w *Worker) mine(ctx context.Context, trans []database.SignedTx) (database.Block, error) {
	block, err := w.state.PrepareBlock(w.miner, nowMs(), trans)
	if err != nil {
		return database.Block{}, err
	}

	for nonce := uint64(0); ; nonce++ {
		block.Header.Nonce = nonce

		if nonce%cancelCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return database.Block{}, ctx.Err()
			default:
			}
			block.Header.TimestampMs = nowMs()
		}

		if block.ID().LessOrEqual(block.Header.Difficulty) {
			return block, nil
		}
	}
}

func nowMs() uint64 {
	return uint64(time.Now().UnixMilli())
}
