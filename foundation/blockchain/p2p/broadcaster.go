package p2p

import (
	"context"
	"fmt"
	"time"

	"github.com/coreledger/powchain/foundation/blockchain/chainerr"
	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/peer"
)

// This file implements worker.Broadcaster. p2p never imports the worker
// package (see server.go's Receiver doc); *Server simply has the matching
// method set, satisfied structurally the same way *worker.Worker satisfies
// p2p.Receiver.

// BroadcastBlock announces a block to every connected peer. The worker calls
// it for locally mined blocks and for committed blocks received from a peer;
// in the second case the announcement also goes back to that peer.
func (s *Server) BroadcastBlock(b database.Block) {
	id := b.ID()
	s.seen.markSeen(id)
	s.broadcastExcept("", KindNewBlockHashes, encodeHashList([]database.Hash{id}))
}

// BroadcastTx announces a locally-submitted transaction to every connected
// peer.
func (s *Server) BroadcastTx(tx database.SignedTx) {
	id := tx.ID()
	s.seen.markSeen(id)
	s.broadcastExcept("", KindNewTransactionHashes, encodeHashList([]database.Hash{id}))
}

// BestPeerHeight returns the connected peer currently advertising the
// highest chain height.
func (s *Server) BestPeerHeight() (*peer.Peer, uint64, bool) {
	id, height, ok := s.table.BestHeight()
	if !ok {
		return nil, 0, false
	}
	p, ok := s.table.Get(id)
	if !ok {
		return nil, 0, false
	}
	return p, height, true
}

// syncBatchWindow bounds how many blocks a single RequestBlocks call walks
// backward before returning, spec.md §4.5's "windowed batches".
const syncBatchWindow = 64

// syncRequestTimeout is how long RequestBlocks waits for one GetBlocks
// round-trip before giving up, spec.md §5's "in-flight sync requests are
// abandoned ... after a timeout (e.g. 5s per batch)".
const syncRequestTimeout = 5 * time.Second

// RequestBlocks fetches the chain segment this node is missing from p,
// walking backward from p's advertised tip by hash (GetBlocks only
// addresses by hash) until a locally-known parent is reached or the batch
// window is exhausted, then returns the segment in parent-first order.
func (s *Server) RequestBlocks(p *peer.Peer, fromHeight uint64) ([]database.Block, error) {
	s.connsMu.RLock()
	c, ok := s.conns[p.ID]
	s.connsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("p2p: peer %s not connected", p.ID)
	}

	current := p.TipHash()
	var chain []database.Block

	for i := 0; i < syncBatchWindow; i++ {
		if _, known, _ := s.cfg.Chain.GetBlock(current); known {
			break
		}

		blocks, err := s.requestOne(c, current)
		if err != nil {
			return nil, err
		}
		if len(blocks) == 0 || blocks[0].ID() != current {
			return nil, fmt.Errorf("p2p: peer %s did not supply requested block %s", p.ID, current)
		}

		b := blocks[0]
		chain = append([]database.Block{b}, chain...)
		if b.Header.Parent == (database.Hash{}) {
			break
		}
		current = b.Header.Parent
	}

	return chain, nil
}

// requestOne sends a single-hash GetBlocks and waits for the matching
// Blocks reply, bridging the async connection into a synchronous call for
// the worker's sync loop.
func (s *Server) requestOne(c *conn, hash database.Hash) ([]database.Block, error) {
	ch := make(chan []database.Block, 1)

	s.pendingMu.Lock()
	s.pending[c.peer.ID] = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, c.peer.ID)
		s.pendingMu.Unlock()
	}()

	c.peer.SetState(peer.FetchingBlocks)
	defer c.peer.SetState(peer.Idle)

	c.send(KindGetBlocks, encodeHashList([]database.Hash{hash}))

	ctx, cancel := context.WithTimeout(context.Background(), syncRequestTimeout)
	defer cancel()

	select {
	case blocks := <-ch:
		return blocks, nil
	case <-ctx.Done():
		return nil, chainerr.Wrap(chainerr.Timeout, fmt.Errorf("p2p: timed out waiting for block %s from peer %s", hash, c.peer.ID))
	case <-c.done:
		return nil, fmt.Errorf("p2p: peer %s disconnected", c.peer.ID)
	}
}
