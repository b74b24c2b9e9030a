package worker

// shareTxOperations gossips freshly admitted mempool transactions to peers.
func (w *Worker) shareTxOperations() {
	w.evH("worker: shareTxOperations: started")
	defer w.evH("worker: shareTxOperations: completed")

	for {
		select {
		case tx := <-w.txSharing:
			if !w.isShutdown() {
				w.net.BroadcastTx(tx)
			}
		case <-w.shut:
			return
		}
	}
}
