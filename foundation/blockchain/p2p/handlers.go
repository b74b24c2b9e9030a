package p2p

import (
	"fmt"

	"github.com/coreledger/powchain/foundation/blockchain/chainerr"
	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/mempool"
)

// dispatch routes one inbound frame to its handler, following the same
// per-kind match original_source's network/worker.rs worker_loop uses.
func (s *Server) dispatch(c *conn, f frame) error {
	switch f.kind {
	case KindPing:
		return s.handlePingPong(c, f, KindPong)
	case KindPong:
		return s.handlePingPong(c, f, 0)
	case KindNewBlockHashes:
		return s.handleNewBlockHashes(c, f)
	case KindGetBlocks:
		return s.handleGetBlocks(c, f)
	case KindBlocks:
		return s.handleBlocks(c, f)
	case KindNewTransactionHashes:
		return s.handleNewTransactionHashes(c, f)
	case KindGetTransactions:
		return s.handleGetTransactions(c, f)
	case KindTransactions:
		return s.handleTransactions(c, f)
	case KindGetHeight:
		return s.handleGetHeight(c, f)
	case KindHeight:
		return s.handleHeight(c, f)
	case KindGetPeers:
		return s.handleGetPeers(c, f)
	case KindPeers:
		return s.handlePeers(c, f)
	default:
		return chainerr.Wrap(chainerr.Protocol, fmt.Errorf("p2p: unknown message kind %d", f.kind))
	}
}

// handlePingPong updates the sender's advertised height/tip and, for a
// Ping, replies with this node's own.
func (s *Server) handlePingPong(c *conn, f frame, replyKind Kind) error {
	advert, err := decodeHeightAdvert(f.payload)
	if err != nil {
		return err
	}
	c.peer.SetTip(advert.Height, advert.TipHash)

	if replyKind != 0 {
		s.sendHeightAdvert(c, replyKind)
	}
	return nil
}

func (s *Server) handleGetHeight(c *conn, f frame) error {
	s.sendHeightAdvert(c, KindHeight)
	return nil
}

func (s *Server) handleHeight(c *conn, f frame) error {
	advert, err := decodeHeightAdvert(f.payload)
	if err != nil {
		return err
	}
	c.peer.SetTip(advert.Height, advert.TipHash)
	return nil
}

// handleNewBlockHashes requests the bodies of any announced hashes this
// node doesn't already have, mirroring original_source's NewBlockHashes
// handling.
func (s *Server) handleNewBlockHashes(c *conn, f frame) error {
	hashes, err := decodeHashList(f.payload)
	if err != nil {
		return err
	}

	var missing []database.Hash
	for _, h := range hashes {
		if _, ok, _ := s.cfg.Chain.GetBlock(h); !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		c.send(KindGetBlocks, encodeHashList(missing))
	}
	return nil
}

func (s *Server) handleGetBlocks(c *conn, f frame) error {
	hashes, err := decodeHashList(f.payload)
	if err != nil {
		return err
	}

	var blocks []database.Block
	for _, h := range hashes {
		if b, ok, _ := s.cfg.Chain.GetBlock(h); ok {
			blocks = append(blocks, b)
		}
	}
	if len(blocks) > 0 {
		c.send(KindBlocks, encodeBlockList(blocks))
	}
	return nil
}

// handleBlocks either satisfies a pending RequestBlocks call for this peer
// (the synchronous sync-bootstrap path) or, for unsolicited gossip
// replies, hands each newly-seen block to the Receiver for async
// validation. The Receiver, not this handler, is responsible for
// announcing the block onward once it actually commits: gossiping a hash
// for a block that hasn't been validated yet would let an invalid block
// spread before anyone checks it.
func (s *Server) handleBlocks(c *conn, f frame) error {
	blocks, err := decodeBlockList(f.payload)
	if err != nil {
		return err
	}

	s.pendingMu.Lock()
	ch, waiting := s.pending[c.peer.ID]
	s.pendingMu.Unlock()
	if waiting {
		select {
		case ch <- blocks:
		default:
		}
		return nil
	}

	for _, b := range blocks {
		id := b.ID()

		if s.cfg.Chain.IsBlacklisted(id) {
			s.recordInvalidBlock(c.peer.Addr)
			continue
		}
		if s.seen.markSeen(id) {
			continue
		}

		s.cfg.Receiver.SubmitRemoteBlock(b)
	}
	return nil
}

func (s *Server) handleNewTransactionHashes(c *conn, f frame) error {
	hashes, err := decodeHashList(f.payload)
	if err != nil {
		return err
	}

	var missing []database.Hash
	for _, h := range hashes {
		if _, ok := s.cfg.Mempool.Get(h); !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		c.send(KindGetTransactions, encodeHashList(missing))
	}
	return nil
}

func (s *Server) handleGetTransactions(c *conn, f frame) error {
	hashes, err := decodeHashList(f.payload)
	if err != nil {
		return err
	}

	var txs []database.SignedTx
	for _, h := range hashes {
		if tx, ok := s.cfg.Mempool.Get(h); ok {
			txs = append(txs, tx)
		}
	}
	if len(txs) > 0 {
		c.send(KindTransactions, encodeTxList(txs))
	}
	return nil
}

// handleTransactions admits relayed transactions into the local mempool
// and announces the newly-admitted ones onward, same "verify before
// forwarding" rule as original_source's Transactions handling.
func (s *Server) handleTransactions(c *conn, f frame) error {
	txs, err := decodeTxList(f.payload)
	if err != nil {
		return err
	}

	var accepted []database.Hash
	for _, tx := range txs {
		id := tx.ID()
		if s.seen.markSeen(id) {
			continue
		}

		result, err := s.cfg.Mempool.Insert(tx, s.cfg.State)
		if err != nil || result != mempool.Added {
			continue
		}
		accepted = append(accepted, id)
	}
	if len(accepted) > 0 {
		s.broadcastExcept(c.peer.ID, KindNewTransactionHashes, encodeHashList(accepted))
	}
	return nil
}
