package worker

import "github.com/coreledger/powchain/foundation/blockchain/state"

// syncOperations periodically compares the best-known peer height against
// the local tip and pulls down any blocks this node is missing.
func (w *Worker) syncOperations() {
	w.evH("worker: syncOperations: started")
	defer w.evH("worker: syncOperations: completed")

	w.runSyncOperation()

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.runSyncOperation()
			}
		case <-w.shut:
			return
		}
	}
}

func (w *Worker) runSyncOperation() {
	peer, height, ok := w.net.BestPeerHeight()
	if !ok {
		return
	}

	_, localHeight, _ := w.state.Tip()
	if height <= localHeight {
		return
	}

	w.evH("worker: runSyncOperation: peer %s at height %d, local at %d", peer.ID, height, localHeight)

	blocks, err := w.net.RequestBlocks(peer, localHeight+1)
	if err != nil {
		w.evH("worker: runSyncOperation: ERROR: requesting blocks from %s: %s", peer.ID, err)
		return
	}

	for _, block := range blocks {
		result, err := w.state.InsertBlock(block)
		if err != nil {
			if result == state.StorageFailure {
				w.abortOnStorageFailure(block.ID(), err)
			}
			w.evH("worker: runSyncOperation: ERROR: inserting block %s: %s", block.ID(), err)
			return
		}
		w.evH("worker: runSyncOperation: block %s: %s", block.ID(), result)
	}
}
