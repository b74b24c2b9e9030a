package worker

import (
	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/state"
)

// blockIngestOperations validates and inserts blocks handed off by the p2p
// layer (received over a connection goroutine, which must not block on
// chain validation itself). A newly accepted block that beats whatever
// mining attempt is in flight cancels it, since that attempt's block would
// be immediately orphaned.
func (w *Worker) blockIngestOperations() {
	w.evH("worker: blockIngestOperations: started")
	defer w.evH("worker: blockIngestOperations: completed")

	for {
		select {
		case block := <-w.blockIn:
			if !w.isShutdown() {
				w.runBlockIngestOperation(block)
			}
		case <-w.shut:
			return
		}
	}
}

// runBlockIngestOperation validates and, if accepted, commits block, then
// announces it to peers. Gossip only ever follows a successful commit
// (spec.md §5): a block is never announced on the strength of having merely
// arrived and been queued.
func (w *Worker) runBlockIngestOperation(block database.Block) {
	tipBefore, _, _ := w.state.Tip()

	result, err := w.state.InsertBlock(block)
	if err != nil {
		if result == state.StorageFailure {
			w.abortOnStorageFailure(block.ID(), err)
		}
		w.evH("worker: runBlockIngestOperation: ERROR: block %s: %s", block.ID(), err)
		return
	}

	w.evH("worker: runBlockIngestOperation: block %s: %s", block.ID(), result)

	if result == state.Accepted {
		w.net.BroadcastBlock(block)
	}

	tipAfter, _, _ := w.state.Tip()
	if tipAfter != tipBefore {
		w.SignalCancelMining()
		w.SignalStartMining()
	}
}
